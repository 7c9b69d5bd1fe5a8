package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/runbox/internal/client"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages and their toolchains",
	RunE:  runLanguages,
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}

func runLanguages(cmd *cobra.Command, args []string) error {
	if serverFlag != "" {
		langs, err := client.New(serverFlag).Languages(context.Background())
		if err != nil {
			return err
		}
		for _, l := range langs {
			fmt.Println(l)
		}
		return nil
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := cfg.Toolchains()
	if err != nil {
		return err
	}

	fmt.Printf("%-12s %-6s %-40s %s\n", "LANGUAGE", "EXT", "COMPILE", "RUN")
	fmt.Println(strings.Repeat("─", 90))
	for _, lang := range table.Languages() {
		tc := table[lang]
		compile := "-"
		if tc.Compiled() {
			compile = strings.Join(tc.Compile, " ")
			if len(tc.AltCompile) > 0 {
				compile += " | " + tc.AltCompile[0]
			}
		}
		run := strings.Join(tc.Run, " ")
		if len(tc.AltRun) > 0 {
			run += " | " + tc.AltRun[0]
		}
		fmt.Printf("%-12s %-6s %-40s %s\n", lang, tc.Extension, compile, run)
	}
	return nil
}
