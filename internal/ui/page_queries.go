package ui

import (
	"quarry/internal/domain"

	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"
)

type queryLogRowData struct {
	Filter    string
	When      string
	Principal string
	Dataset   string
	Status    string
	Duration  string
	Rows      string
	Scanned   string
	Pruned    string
	Error     string
}

func queriesListPage(principal domain.ContextPrincipal, rows []queryLogRowData, page domain.PageRequest, total int64) Node {
	tableRows := make([]Node, 0, len(rows))
	for i := range rows {
		r := rows[i]
		tone := "success"
		if r.Status == domain.QueryStatusError {
			tone = "danger"
		}
		tableRows = append(tableRows, Tr(
			data.Show(containsExpr(r.Filter)),
			Td(Text(r.When)),
			Td(Text(r.Principal)),
			Td(Text(r.Dataset)),
			Td(statusLabel(r.Status, tone), errorHint(r.Error)),
			Td(Text(r.Duration)),
			Td(Text(r.Rows)),
			Td(Text(r.Scanned)),
			Td(Text(r.Pruned)),
		))
	}
	tableNode := Node(emptyStateCard("No queries recorded yet."))
	if len(tableRows) > 0 {
		tableNode = Div(Class(cardClass("table-wrap")), Table(Class("data-table"),
			THead(Tr(Th(Text("When")), Th(Text("Principal")), Th(Text("Dataset")), Th(Text("Status")), Th(Text("Duration")), Th(Text("Rows")), Th(Text("Scanned")), Th(Text("Pruned")))),
			TBody(Group(tableRows))))
	}
	return appPage("Query Log", "queries", principal,
		quickFilterCard("Filter by principal, dataset, or status"),
		tableNode,
		paginationCard("/ui/queries", page, total))
}

func errorHint(message string) Node {
	if message == "" {
		return nil
	}
	return P(Class(mutedClass()+" mb-0"), Title(message), Text(truncate(message, 80)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
