package fx

import (
	"loto-issuer/internal/api"
	"loto-issuer/internal/config"
	"loto-issuer/internal/database"
	"loto-issuer/internal/logger"
	"loto-issuer/internal/repository"
	"loto-issuer/internal/server"
	"loto-issuer/internal/service"
	"loto-issuer/internal/session"

	"go.uber.org/fx"
)

func ProvideSessionStore(repo *repository.SessionRepository) session.Store {
	return repo
}

func ProvideEngine(client *api.EngineClient) service.Engine {
	return client
}

func ProvideHistory(repo *repository.IssuanceRepository) service.History {
	return repo
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewSessionRepository),
	fx.Provide(repository.NewIssuanceRepository),
	fx.Provide(ProvideSessionStore),
	fx.Provide(ProvideHistory),
	// session + engine client
	fx.Provide(session.NewManager),
	fx.Provide(api.NewEngineClient),
	fx.Provide(ProvideEngine),
	// svc
	fx.Provide(service.NewIssuer),
	// server
	fx.Provide(server.NewIssuerServer),
)
