package ui

import (
	"quarry/internal/domain"

	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"
)

type datasetListRowData struct {
	Filter    string
	Name      string
	URL       string
	Format    string
	Location  string
	Partition string
	FileCount string
	Size      string
	Updated   string
}

func datasetsListPage(principal domain.ContextPrincipal, rows []datasetListRowData, page domain.PageRequest, total int64) Node {
	tableRows := make([]Node, 0, len(rows))
	for i := range rows {
		r := rows[i]
		tableRows = append(tableRows, Tr(
			data.Show(containsExpr(r.Filter)),
			Td(A(Href(r.URL), Text(r.Name))),
			Td(statusLabel(r.Format, "accent")),
			Td(Text(r.Location)),
			Td(Text(r.Partition)),
			Td(Text(r.FileCount)),
			Td(Text(r.Size)),
			Td(Text(r.Updated)),
		))
	}
	tableNode := Node(emptyStateCard("No datasets registered. Use the API or `quarry dataset register` to add one."))
	if len(tableRows) > 0 {
		tableNode = Div(Class(cardClass("table-wrap")), Table(Class("data-table"),
			THead(Tr(Th(Text("Name")), Th(Text("Format")), Th(Text("Location")), Th(Text("Partitions")), Th(Text("Files")), Th(Text("Size")), Th(Text("Updated")))),
			TBody(Group(tableRows))))
	}
	return appPage("Datasets", "datasets", principal,
		quickFilterCard("Filter by name, format, or location"),
		tableNode,
		paginationCard("/ui", page, total))
}

type datasetDetailPageData struct {
	Principal domain.ContextPrincipal
	Dataset   *domain.Dataset
	Files     []domain.DatasetFile
}

func datasetDetailPage(d datasetDetailPageData) Node {
	ds := d.Dataset

	summary := Div(Class(cardClass()),
		P(Text("Location: "+ds.Location)),
		P(Text("Format: "+ds.Format)),
		P(Text("Pattern: "+ds.Pattern)),
		P(Text("Partition keys: "+stringsJoin(ds.PartitionKeys))),
		P(Text("Owner: "+orDash(ds.Owner))),
		P(Text("Description: "+orDash(ds.Description))),
		P(Text("Refresh cron: "+orDash(ds.RefreshCron))),
		P(Class(mutedClass()), Text("Created "+formatTime(ds.CreatedAt)+" | Updated "+formatTime(ds.UpdatedAt)+" | Last refresh "+formatTimePtr(ds.LastRefreshAt))),
	)

	colRows := make([]Node, 0, len(ds.Columns))
	for i := range ds.Columns {
		c := ds.Columns[i]
		origin := "inferred"
		if c.Declared {
			origin = "declared"
		}
		kind := ""
		if c.Partition {
			kind = "partition"
		}
		colRows = append(colRows, Tr(
			Td(Text(c.Name)),
			Td(Text(c.Type)),
			Td(statusLabel(origin, originTone(c.Declared))),
			Td(Text(kind)),
			Td(Text(stringsJoin(c.Sentinels))),
		))
	}
	columnsCard := Div(Class(cardClass("table-wrap")),
		H2(Text("Columns")),
		Table(Class("data-table"),
			THead(Tr(Th(Text("Name")), Th(Text("Type")), Th(Text("Origin")), Th(Text("Kind")), Th(Text("NULL sentinels")))),
			TBody(Group(colRows))))

	fileRows := make([]Node, 0, len(d.Files))
	for i := range d.Files {
		f := d.Files[i]
		fileRows = append(fileRows, Tr(
			data.Show(containsExpr(f.Path+" "+mapJSON(f.Partition))),
			Td(Code(Text(f.Path))),
			Td(Text(formatBytes(f.SizeBytes))),
			Td(Text(mapJSON(f.Partition))),
			Td(Text(formatTime(f.DiscoveredAt))),
		))
	}
	filesNode := Node(emptyStateCard("No files discovered."))
	if len(fileRows) > 0 {
		filesNode = Div(Class(cardClass("table-wrap")),
			H2(Text("Files")),
			Table(Class("data-table"),
				THead(Tr(Th(Text("Path")), Th(Text("Size")), Th(Text("Partition")), Th(Text("Discovered")))),
				TBody(Group(fileRows))))
	}

	return appPage("Dataset: "+ds.Name, "datasets", d.Principal,
		summary,
		columnsCard,
		quickFilterCard("Filter files by path or partition"),
		filesNode)
}

func originTone(declared bool) string {
	if declared {
		return "attention"
	}
	return ""
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
