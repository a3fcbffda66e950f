package app

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/filesmanager/http/server"
	"github.com/rise-and-shine/filesmanager/http/server/forward"
	"github.com/rise-and-shine/filesmanager/http/server/middleware"
	"github.com/rise-and-shine/filesmanager/internal/auth"
	"github.com/rise-and-shine/filesmanager/internal/files"
	"github.com/rise-and-shine/filesmanager/internal/status"
	"github.com/rise-and-shine/filesmanager/internal/users"
	"github.com/rise-and-shine/filesmanager/rediswr"
	"github.com/rise-and-shine/filesmanager/taskmill"
)

func (a *App) newHTTPServer() *server.HTTPServer {
	srv := server.NewHTTPServer(a.cfg.HTTP, []server.Middleware{
		middleware.NewRecoveryMW(),
		middleware.NewTracingMW(),
		middleware.NewTimeoutMW(a.cfg.HTTP.HandleTimeout),
		middleware.NewMetaInjectMW(a.cfg.Service.Name, a.cfg.Service.Version),
		middleware.NewAlertingMW(),
		middleware.NewLoggerMW(),
		middleware.NewErrorHandlerMW(a.cfg.HTTP.HideErrorDetails),
	})

	queueStats, _ := a.broker.(taskmill.StatsProvider)

	srv.RegisterRouter(func(r fiber.Router) {
		registerRoutes(r, routes{
			sessions: a.sessions,
			status: status.NewGetStatus(
				func(ctx context.Context) error { return a.db.PingContext(ctx) },
				func(ctx context.Context) error { return rediswr.Ping(ctx, a.redis) },
			),
			stats:       status.NewGetStats(a.usersRepo, a.filesRepo, queueStats, a.cfg.Queue.Name, a.worker),
			createUser:  users.NewCreateUser(a.usersRepo),
			getMe:       users.NewGetMe(a.usersRepo),
			connect:     auth.NewConnect(a.usersRepo, a.sessions, a.cfg.Auth.SessionTTL),
			disconnect:  auth.NewDisconnect(a.sessions),
			uploadFile:  files.NewUploadFile(a.filesRepo, a.blob, a.enqueuer),
			getFile:     files.NewGetFile(a.filesRepo),
			listFiles:   files.NewListFiles(a.filesRepo),
			publish:     files.NewPublishFile(a.filesRepo),
			unpublish:   files.NewUnpublishFile(a.filesRepo),
			resolveData: files.NewResolveContent(a.filesRepo, a.blob),
		})
	})
	return srv
}

type routes struct {
	sessions auth.SessionStore

	status      status.GetStatus
	stats       status.GetStats
	createUser  users.CreateUser
	getMe       users.GetMe
	connect     auth.Connect
	disconnect  auth.Disconnect
	uploadFile  files.UploadFile
	getFile     files.GetFile
	listFiles   files.ListFiles
	publish     files.SetVisibility
	unpublish   files.SetVisibility
	resolveData *files.ResolveContent
}

func registerRoutes(r fiber.Router, rt routes) {
	requireUser := auth.RequireUser(rt.sessions)

	r.Get("/status", forward.ToUserAction(rt.status))
	r.Get("/stats", forward.ToUserAction(rt.stats))

	r.Post("/users", forward.ToUserAction(rt.createUser, forward.WithStatus(fiber.StatusCreated)))
	r.Get("/users/me", requireUser, forward.ToUserAction(rt.getMe))

	r.Get("/connect", forward.ToUserAction(rt.connect))
	r.Get("/disconnect", forward.ToUserAction(rt.disconnect, forward.WithStatus(fiber.StatusNoContent)))

	// content retrieval serves public files to anonymous clients
	r.Get("/files/:id/data", auth.OptionalUser(rt.sessions), files.ContentHandler(rt.resolveData))

	r.Post("/files", requireUser, forward.ToUserAction(rt.uploadFile, forward.WithStatus(fiber.StatusCreated)))
	r.Get("/files", requireUser, forward.ToUserAction(rt.listFiles))
	r.Get("/files/:id", requireUser, forward.ToUserAction(rt.getFile))
	r.Put("/files/:id/publish", requireUser, forward.ToUserAction(rt.publish))
	r.Put("/files/:id/unpublish", requireUser, forward.ToUserAction(rt.unpublish))
}
