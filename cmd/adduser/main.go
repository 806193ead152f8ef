// cmd/adduser/main.go
// Registers a user with the same validation and conflict rules as POST /register.
//
// Usage:
//
//	go run ./cmd/adduser -username alice -email alice@example.com -password testing
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/padraicbc/library/apperr"
	"github.com/padraicbc/library/auth"
	"github.com/padraicbc/library/config"
	bundb "github.com/padraicbc/library/db"
	applog "github.com/padraicbc/library/logger"
	"github.com/padraicbc/library/store"
)

func main() {
	username := flag.String("username", "", "username (required)")
	email := flag.String("email", "", "e-mail address (required)")
	password := flag.String("password", "", "plain-text password (required)")
	flag.Parse()

	in, err := auth.NewRegisterInput(*username, *email, *password)
	if err != nil {
		log.Fatal("invalid input: ", err)
	}

	cfg := config.Load()
	logger, err := applog.New("adduser", cfg.Debug)
	if err != nil {
		log.Fatal("logger: ", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db := bundb.Setup(cfg)
	defer db.Close()
	if err := bundb.CreateTables(ctx, db); err != nil {
		log.Fatal("create tables: ", err)
	}

	svc := auth.NewService(store.NewUsers(db), auth.NewPasswords(cfg.BcryptCost), logger)
	u, err := svc.Register(ctx, in)
	if err != nil {
		if field, ok := apperr.IsConflict(err); ok {
			log.Fatalf("%s is already registered", field)
		}
		log.Fatal("register: ", err)
	}

	fmt.Printf("user %q saved with id %d\n", u.Username, u.ID)
}
