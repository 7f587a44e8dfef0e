package config

import (
	"fmt"
	"io"
	"strings"
)

// GenSQL writes the seed SQL for the configuration table, one INSERT per
// key, suitable for loading into a fresh deployment database.
func GenSQL(w io.Writer, program, version string) error {
	if _, err := fmt.Fprintf(w, "--\n-- This file was generated using: %s --gensql\n-- binary version: %s\n--\n", program, version); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, `CREATE TABLE IF NOT EXISTS CONFIG ( KEYSTRING TEXT UNIQUE NOT NULL, VALUESTRING TEXT, STATIC INTEGER DEFAULT 0, OPTIONAL INTEGER DEFAULT 0, COMMENTS TEXT DEFAULT '');`); err != nil {
		return err
	}
	for _, k := range Keys {
		optional := 0
		if k.Optional {
			optional = 1
		}
		_, err := fmt.Fprintf(w, "INSERT OR IGNORE INTO \"CONFIG\" VALUES('%s','%s',0,%d,'%s');\n",
			sqlEscape(k.Name), sqlEscape(k.Default), optional, sqlEscape(k.Description))
		if err != nil {
			return err
		}
	}
	return nil
}

// GenTex writes the configuration reference as LaTeX longtable rows.
func GenTex(w io.Writer, program, version string) error {
	if _, err := fmt.Fprintf(w, "%% generated using: %s --gentex\n%% binary version: %s\n", program, version); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, `\begin{longtable}{|l|l|p{7cm}|}`+"\n"+`\hline`+"\n"+`Key & Default & Description \\`+"\n"+`\hline`); err != nil {
		return err
	}
	for _, k := range Keys {
		def := k.Default
		if def == "" {
			def = "(disabled)"
		}
		units := ""
		if k.Units != "" {
			units = " " + k.Units
		}
		_, err := fmt.Fprintf(w, "%s & %s%s & %s \\\\\n\\hline\n",
			texEscape(k.Name), texEscape(def), texEscape(units), texEscape(k.Description))
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, `\end{longtable}`)
	return err
}

func sqlEscape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func texEscape(s string) string {
	r := strings.NewReplacer(
		"\\", `\textbackslash `,
		"_", `\_`,
		"%", `\%`,
		"&", `\&`,
		"#", `\#`,
		"$", `\$`,
	)
	return r.Replace(s)
}
