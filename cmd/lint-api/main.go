// Command lint-api checks an OpenAPI 3.x document against the quarry API
// conventions. With no file argument it lints the embedded spec the server
// ships, so CI always checks what is actually served.
//
// Usage:
//
//	go run ./cmd/lint-api [flags] [openapi.yaml]
//
// Flags:
//
//	-severity    minimum severity to report: error, warn, info (default: all)
//	-config      path to an .apilint.yaml with per-rule overrides
//	-list-rules  print the rule IDs and exit
package main

import (
	"flag"
	"fmt"
	"os"

	"quarry/internal/api"
	"quarry/pkg/apilint"
)

func main() {
	severity := flag.String("severity", "", "minimum severity to report: error, warn, info (default: all)")
	configPath := flag.String("config", "", "path to .apilint.yaml with per-rule severity overrides")
	listRules := flag.Bool("list-rules", false, "print rule IDs and exit")
	flag.Parse()

	if *listRules {
		for _, id := range apilint.RuleIDs() {
			fmt.Println(id)
		}
		return
	}

	var (
		linter *apilint.Linter
		target string
		err    error
	)
	if flag.NArg() > 0 {
		target = flag.Arg(0)
		linter, err = apilint.NewFromFile(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(2)
		}
	} else {
		target = "internal/api/openapi.yaml (embedded)"
		linter = apilint.New(target, api.SpecYAML())
	}

	var cfg *apilint.Config
	if *configPath != "" {
		cfg, err = apilint.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(2)
		}
	}

	violations, err := linter.RunWithConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if *severity != "" {
		sev := apilint.Severity(*severity)
		switch sev {
		case apilint.SeverityError, apilint.SeverityWarn, apilint.SeverityInfo:
			violations = apilint.Filter(violations, sev)
		default:
			fmt.Fprintf(os.Stderr, "error: unknown severity %q (use: error, warn, info)\n", *severity)
			os.Exit(2)
		}
	}

	for _, v := range violations {
		fmt.Println(v)
	}

	if len(violations) == 0 {
		fmt.Printf("%s: ok (0 violations)\n", target)
	} else {
		fmt.Printf("\n%d violation(s) found\n", len(violations))
	}

	if apilint.HasErrors(violations) {
		os.Exit(1)
	}
}
