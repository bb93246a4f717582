// Command token issues a bearer token for a lab user, for operators and scripted clients.
package main

import (
	"flag"
	"fmt"
	"os"

	"lab-backend/internal/auth"
	"lab-backend/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	userID := flag.Int("user", 0, "user id")
	tenantID := flag.Int("tenant", 0, "tenant id")
	branchID := flag.Int("branch", 0, "branch id (optional)")
	role := flag.String("role", "employee", "role: admin, accountant or employee")
	flag.Parse()

	if *userID <= 0 || *tenantID <= 0 {
		fmt.Fprintln(os.Stderr, "usage: token -user <id> -tenant <id> [-branch <id>] [-role <role>]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var branch *int
	if *branchID > 0 {
		branch = branchID
	}
	token, err := auth.NewJWTManager(cfg).GenerateToken(*userID, *tenantID, branch, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
