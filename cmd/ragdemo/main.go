/*
Package main is the entry point for the ragdemo CLI.

Usage:

	ragdemo [command]

Available Commands:

	serve   Run an MCP tool server (math, weather, elasticsearch, chroma) over stdio or HTTP
	seed    Load the demo product catalogue into Elasticsearch or Chroma
	ask     Answer a question: direct retrieval, retrieval as a tool, or via an MCP server
	tools   List the tools a server exposes

Examples:

	# Offline: embedded backends seeded at start
	SEARCH_BACKEND=bleve SEED_ON_START=true ragdemo serve elasticsearch --transport http

	# Ask through a spawned stdio server
	ragdemo ask mcp --server elasticsearch "What laptops do you have for programming?"
*/
package main

import (
	"context"
	"os"

	"github.com/veigap/austral-genai-rag/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
