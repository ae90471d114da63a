package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/worldstrat/internal/api"
	"github.com/lox/worldstrat/internal/config"
	"github.com/lox/worldstrat/internal/eda"
	"github.com/lox/worldstrat/internal/export"
	"github.com/lox/worldstrat/internal/metadata"
	"github.com/lox/worldstrat/internal/store"
	"github.com/lox/worldstrat/internal/table"
)

type CLI struct {
	Config string `help:"Path to YAML config file." env:"WORLDSTRAT_CONFIG" default:"worldstrat.yaml" type:"path"`

	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Run the dashboard web server."`
	Summary SummaryCmd `cmd:"" help:"Print per-column summary statistics for a metadata file."`
	Export  ExportCmd  `cmd:"" help:"Write a cloud-filtered metadata view as Arrow IPC or Parquet."`
}

type ServeCmd struct {
	Port string `help:"HTTP server port." env:"WORLDSTRAT_PORT" default:"8080"`
	DB   string `help:"Path to SQLite database." env:"WORLDSTRAT_DB" default:"data/worldstrat.db"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	if c.DB != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.DB), 0o755); err != nil {
			return fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", c.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	if c.DB == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Println("database migrated")

	server, err := api.NewServer(st, cfg, c.Port)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

type SummaryCmd struct {
	Path string `arg:"" help:"Metadata file (CSV, TSV or Parquet)." type:"existingfile"`
}

func (c *SummaryCmd) Run() error {
	t, err := metadata.Load(c.Path)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d rows, %d columns\n", c.Path, t.Len(), len(t.Columns()))
	for _, s := range table.Describe(t) {
		fmt.Println(s.String())
	}
	return nil
}

type ExportCmd struct {
	Path     string   `arg:"" help:"Metadata file (CSV, TSV or Parquet)." type:"existingfile"`
	CloudMax *float64 `help:"Keep rows with cloud_cover at or below this value."`
	Format   string   `help:"Output format." enum:"arrow,parquet" default:"parquet"`
	Out      string   `short:"o" help:"Output file. Defaults to the input name with the format extension."`
}

func (c *ExportCmd) Run() error {
	format, err := export.ParseFormat(c.Format)
	if err != nil {
		return err
	}

	t, err := metadata.Load(c.Path)
	if err != nil {
		return err
	}

	if c.CloudMax != nil {
		if *c.CloudMax < 0 || *c.CloudMax > 100 {
			return fmt.Errorf("cloud-max %v outside [0, 100]", *c.CloudMax)
		}
		t, err = table.FilterByMax(t, eda.CloudCover, *c.CloudMax)
		if err != nil {
			return err
		}
	}

	out := c.Out
	if out == "" {
		ext := filepath.Ext(c.Path)
		out = c.Path[:len(c.Path)-len(ext)] + format.Ext()
		if out == c.Path {
			out = c.Path[:len(c.Path)-len(ext)] + ".view" + format.Ext()
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := export.Write(f, t, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	log.Printf("wrote %d rows to %s", t.Len(), out)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("worldstrat"),
		kong.Description("Exploratory dashboard for the WorldStrat satellite imagery dataset."),
		kong.UsageOnError(),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
