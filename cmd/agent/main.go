// Package main is the entry point for the Agent-X Service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	agentsvc "github.com/kart-io/agent-x/internal/agent"
)

func main() {
	agentsvc.NewApp().Run()
}
