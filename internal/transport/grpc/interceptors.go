package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/cwrk-planet/chat-service/internal/auth"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

const (
	mdAuthorization = "authorization"
	mdUserID        = "x-user-id"

	defaultDeadline = 10 * time.Second
)

// UnaryServerInterceptor logs every call, turns panics into codes.Internal,
// maps domain errors to status codes and bounds calls that arrive without a
// deadline.
func UnaryServerInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultDeadline)
			defer cancel()
		}
		l := log.With("method", info.FullMethod)
		ctx = logger.WithContext(ctx, l)

		defer func() {
			if r := recover(); r != nil {
				l.Error("grpc unary panic", "panic", r, "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			err = mapErr(err)
			lvl := slog.LevelInfo
			if status.Code(err) == codes.Internal {
				lvl = slog.LevelError
			}
			l.Log(ctx, lvl, "grpc unary",
				"dur_ms", time.Since(start).Milliseconds(),
				"code", status.Code(err).String(),
				"err", errString(err))
		}()

		return handler(ctx, req)
	}
}

func StreamServerInterceptor(log *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()
		l := log.With("method", info.FullMethod)

		defer func() {
			if r := recover(); r != nil {
				l.Error("grpc stream panic", "panic", r, "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			err = mapErr(err)
			l.Info("grpc stream",
				"dur_ms", time.Since(start).Milliseconds(),
				"code", status.Code(err).String(),
				"err", errString(err))
		}()

		return handler(srv, ss)
	}
}

// AuthUnaryInterceptor resolves the caller from the authorization and
// x-user-id metadata and stores the user id in the context. Methods under
// the prefixes in public skip authentication.
func AuthUnaryInterceptor(a auth.Authenticator, public ...string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		for _, p := range public {
			if strings.HasPrefix(info.FullMethod, p) {
				return handler(ctx, req)
			}
		}
		md, _ := metadata.FromIncomingContext(ctx)
		userID, err := a.Authenticate(ctx, auth.Credentials{
			Token:  auth.BearerToken(first(md.Get(mdAuthorization))),
			UserID: first(md.Get(mdUserID)),
		})
		if err != nil {
			return nil, mapErr(err)
		}
		return handler(auth.WithUserID(ctx, userID), req)
	}
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
