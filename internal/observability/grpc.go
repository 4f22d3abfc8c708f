package observability

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor traces and times unary admin calls.
func UnaryServerInterceptor(m *Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := serverSpan(ctx, info.FullMethod)
		defer span.End()

		start := time.Now()
		resp, err := handler(ctx, req)
		finishRPC(m, span, info.FullMethod, err, time.Since(start))
		return resp, err
	}
}

// StreamServerInterceptor traces and times streaming admin calls, counting
// messages in each direction.
func StreamServerInterceptor(m *Metrics) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, span := serverSpan(ss.Context(), info.FullMethod)
		defer span.End()

		start := time.Now()
		wrapped := &countingStream{ServerStream: ss, ctx: ctx}
		err := handler(srv, wrapped)
		span.SetAttributes(
			attribute.Int64("rpc.messages_sent", wrapped.sent.Load()),
			attribute.Int64("rpc.messages_received", wrapped.recv.Load()),
		)
		finishRPC(m, span, info.FullMethod, err, time.Since(start))
		return err
	}
}

func serverSpan(ctx context.Context, method string) (context.Context, trace.Span) {
	ctx = extractTraceContext(ctx)
	return otel.Tracer(TracerName).Start(ctx, method, trace.WithSpanKind(trace.SpanKindServer))
}

func finishRPC(m *Metrics, span trace.Span, method string, err error, elapsed time.Duration) {
	code := status.Code(err).String()
	span.SetAttributes(attribute.String("rpc.grpc.status_code", code))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	m.observe(method, code, elapsed.Seconds())
}

func extractTraceContext(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(md))
}

type countingStream struct {
	grpc.ServerStream
	ctx  context.Context
	sent atomic.Int64
	recv atomic.Int64
}

func (s *countingStream) Context() context.Context { return s.ctx }

func (s *countingStream) SendMsg(m any) error {
	err := s.ServerStream.SendMsg(m)
	if err == nil {
		s.sent.Add(1)
	}
	return err
}

func (s *countingStream) RecvMsg(m any) error {
	err := s.ServerStream.RecvMsg(m)
	if err == nil {
		s.recv.Add(1)
	}
	return err
}
