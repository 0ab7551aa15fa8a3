package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"storefront-backend/internal/app"
	"storefront-backend/internal/auth"
	"storefront-backend/internal/catalog"
	"storefront-backend/internal/config"
	"storefront-backend/internal/models"
)

const usage = "expected 'catalog' or 'add-admin' subcommand"

func main() {
	addAdminCmd := flag.NewFlagSet("add-admin", flag.ExitOnError)
	name := addAdminCmd.String("name", "", "Display name for the new account")
	email := addAdminCmd.String("email", "", "Email for the new account")
	password := addAdminCmd.String("password", "", "Password for the new account")
	role := addAdminCmd.String("role", string(models.RoleAdmin), "Role: admin or moderator")

	catalogCmd := flag.NewFlagSet("catalog", flag.ExitOnError)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "catalog":
		catalogCmd.Parse(os.Args[2:])
		seedCatalog()
	case "add-admin":
		addAdminCmd.Parse(os.Args[2:])
		r := models.Role(*role)
		if *email == "" || *password == "" || !r.Privileged() {
			fmt.Println("email, password and a role of admin or moderator are required")
			addAdminCmd.PrintDefaults()
			os.Exit(1)
		}
		createStaff(*name, *email, *password, r)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func open(ctx context.Context) (*config.Config, *app.Backends) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	backends, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open backends: %v", err)
	}
	return cfg, backends
}

func seedCatalog() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, backends := open(ctx)
	defer backends.Close(ctx)

	n, err := catalog.NewService(backends.Products, backends.Publisher).SeedIfEmpty(ctx)
	if err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}
	if n == 0 {
		fmt.Println("Catalog already has products; nothing to do.")
		return
	}
	fmt.Printf("Seeded %d products.\n", n)
}

func createStaff(name, email, password string, role models.Role) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cfg, backends := open(ctx)
	defer backends.Close(ctx)

	svc := auth.NewService(backends.Users, backends.Slots, auth.Options{
		Secret:   cfg.JWTSecret,
		TokenTTL: cfg.TokenTTL,
	})
	u, err := svc.CreateStaff(ctx, name, email, password, role)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", role, auth.MessageFor(err, err.Error()))
	}
	fmt.Printf("%s '%s' created successfully.\n", role, u.Email)
}
