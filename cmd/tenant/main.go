package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaourbana/municipio/internal/db"
	"github.com/gestaourbana/municipio/internal/tenant"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN ou DATABASE_URL")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	service := tenant.NewService(tenant.NewRepository(pool), nil, 0)

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "create":
		if err := runCreate(ctx, service, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao criar tenant")
		}
	case "list":
		if err := runList(ctx, service); err != nil {
			log.Fatal().Err(err).Msg("falha ao listar tenants")
		}
	case "ensure-pool":
		if err := service.EnsurePoolExists(ctx); err != nil {
			log.Fatal().Err(err).Msg("falha ao garantir a fila de espera")
		}
		fmt.Println(tenant.PoolTenantID)
	case "adopt":
		if err := runAdopt(ctx, service, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao adotar cidadãos")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "tenant CLI")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  tenant create --slug cidade --name \"Prefeitura\" [--plan basico] [--settings-file settings.json]")
	fmt.Fprintln(os.Stderr, "  tenant list")
	fmt.Fprintln(os.Stderr, "  tenant ensure-pool")
	fmt.Fprintln(os.Stderr, "  tenant adopt --tenant <uuid>")
}

func runCreate(ctx context.Context, service *tenant.Service, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		slug         = fs.String("slug", "", "slug do tenant (ex.: cabaceiras)")
		name         = fs.String("name", "", "nome exibido")
		plan         = fs.String("plan", "basico", "plano contratado")
		settingsFile = fs.String("settings-file", "", "arquivo JSON com configurações visuais")
		settingsJSON = fs.String("settings", "", "JSON literal com configurações visuais")
	)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *slug == "" || *name == "" {
		return errors.New("slug e name são obrigatórios")
	}

	settings := map[string]any{}
	if *settingsFile != "" {
		raw, err := os.ReadFile(*settingsFile)
		if err != nil {
			return fmt.Errorf("ler settings-file: %w", err)
		}
		if err := json.Unmarshal(raw, &settings); err != nil {
			return fmt.Errorf("parse settings-file: %w", err)
		}
	} else if *settingsJSON != "" {
		if err := json.Unmarshal([]byte(*settingsJSON), &settings); err != nil {
			return fmt.Errorf("parse settings: %w", err)
		}
	}

	tenantCreated, err := service.Create(ctx, tenant.CreateTenantInput{
		Slug:        *slug,
		DisplayName: *name,
		Plan:        *plan,
		Settings:    settings,
	})
	if err != nil {
		return err
	}

	output, _ := json.MarshalIndent(tenantCreated, "", "  ")
	fmt.Println(string(output))
	return nil
}

func runList(ctx context.Context, service *tenant.Service) error {
	tenants, err := service.List(ctx)
	if err != nil {
		return err
	}

	if len(tenants) == 0 {
		fmt.Println("nenhum tenant cadastrado")
		return nil
	}

	encoded, _ := json.MarshalIndent(tenants, "", "  ")
	fmt.Println(string(encoded))
	return nil
}

func runAdopt(ctx context.Context, service *tenant.Service, args []string) error {
	fs := flag.NewFlagSet("adopt", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	tenantID := fs.String("tenant", "", "tenant de destino")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := uuid.Parse(*tenantID)
	if err != nil {
		return fmt.Errorf("tenant inválido: %w", err)
	}

	moved, err := service.AdoptCitizens(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("%d cidadão(s) adotado(s)\n", moved)
	return nil
}
