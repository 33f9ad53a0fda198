// Package relayx is the client-side runtime of the realtime pub/sub SDK: a
// topic-oriented publish/subscribe API (Publish/On/Off/History) plus a
// work-queue extension (Consume/Detach/DeleteConsumer), layered over a
// JetStream-capable NATS deployment. The package negotiates a per-tenant
// namespace, lazily materializes streams and subjects, reconciles consumers
// against a changing subscription set, buffers publishes made while
// disconnected and replays them on reconnect, and dispatches a small
// lifecycle event model (CONNECTED, RECONNECT, MESSAGE_RESEND, DISCONNECTED).
package relayx
