package cli

import (
	"bufio"
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/thelarryrutledge/nvlp-go/internal/client/config"
	"github.com/thelarryrutledge/nvlp-go/internal/client/nvlp"
	"github.com/thelarryrutledge/nvlp-go/internal/logging"
)

type App struct {
	config *config.Config
	client *nvlp.Client
	reader *bufio.Reader

	userEmail string
}

func NewApp(c *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	client, err := nvlp.New(c, nvlp.Dependencies{Logger: logger})
	if err != nil {
		return nil, err
	}

	a := &App{config: c, client: client, reader: bufio.NewReader(os.Stdin)}

	client.OnSessionInvalidated(func(ev nvlp.InvalidatedEvent) {
		log.Printf("Session invalidated, please log in again")
		a.userEmail = ""
	})

	return a, nil
}

func (a *App) isLoggedIn() bool {
	return a.client.Session() != nil
}

func (a *App) Run(ctx context.Context) {
	a.Root(ctx)
}
