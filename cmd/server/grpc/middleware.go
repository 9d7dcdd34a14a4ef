package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/naughtygopher/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"github.com/prashantkr001/inventory-api/internal/pkg/logger"
)

func MwAccessLog( //nolint:nonamedreturns //nolint:nolintlint
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp any, err error) {
	start := time.Now()
	resp, err = handler(ctx, req)
	elapsed := time.Since(start)

	code := codes.OK
	status := logger.Green("[grpc]::✔")
	if err != nil {
		code, _ = errors.GRPCStatusCode(err)
		status = logger.Red(fmt.Sprintf("[grpc]::%s", code))
	}

	logger.InfoCtx(
		ctx,
		fmt.Sprintf("%s %s %s", status, logger.Cyan(info.FullMethod), elapsed),
		zap.String("method", info.FullMethod),
		zap.String("code", code.String()),
		zap.Duration("elapsed", elapsed),
	)

	return resp, err
}

// MwErrWrapper converts application errors into gRPC status errors.
func MwErrWrapper( //nolint:nonamedreturns //nolint:nolintlint
	ctx context.Context, req any,
	_ *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp any, err error) {
	resp, err = handler(ctx, req)
	if err == nil {
		return resp, nil
	}

	return nil, responseErrWithLogs(ctx, err)
}

func responseErrWithLogs(ctx context.Context, err error) error {
	code, _ := errors.GRPCStatusCode(err)
	switch code {
	case codes.InvalidArgument,
		codes.AlreadyExists,
		codes.NotFound:
		logger.WarnCtx(ctx, err.Error(), zap.String("code", code.String()))
	default:
		logger.ErrWithStacktraceCtx(ctx, err)
	}

	return responseError(err)
}
