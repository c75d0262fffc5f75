// Command educanvasctl runs operational tasks against an EduCanvas deployment:
//
//	educanvasctl migrate up
//	educanvasctl bootstrap --email owner@academy.test --name "Owner"
//	educanvasctl jobs trigger audit:prune
//	educanvasctl jobs stats --json
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
