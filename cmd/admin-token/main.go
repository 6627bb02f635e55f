package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vendkiosk/kiosk-backend/pkg/auth"
	"github.com/vendkiosk/kiosk-backend/pkg/config"
	"github.com/vendkiosk/kiosk-backend/pkg/enums"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

// admin-token mints a bearer token for the admin console.
func main() {
	logg := logger.New(logger.Options{ServiceName: "admin-token"})
	_ = godotenv.Load()

	operator := flag.String("operator", "", "operator name recorded in the token")
	role := flag.String("role", string(enums.AdminRoleAdmin), "admin|viewer")
	flag.Parse()

	if *operator == "" {
		fmt.Fprintln(os.Stderr, "missing -operator")
		os.Exit(1)
	}
	parsedRole, err := enums.ParseAdminRole(*role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	token, err := auth.MintAdminToken(cfg.JWT, time.Now(), auth.AdminTokenPayload{
		Operator: *operator,
		Role:     parsedRole,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to mint admin token", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
