package runstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

const serverReadyTimeout = 10 * time.Second

// ErrServerNotReady indicates that the embedded NATS server did not accept
// connections within the startup window.
var ErrServerNotReady = errors.New("embedded NATS server did not become ready")

// EmbeddedServer is an in-process NATS server with JetStream enabled, bound
// to the loopback interface. The service carries its own object store so a
// deployment needs no external broker.
type EmbeddedServer struct {
	natsServer       *server.Server
	natsConnection   *nats.Conn
	jetstreamContext nats.JetStreamContext
}

// StartEmbedded boots the server, waits for it to accept connections, and
// establishes the JetStream context. storeDir holds JetStream metadata; run
// buckets themselves are memory backed.
func StartEmbedded(storeDir string, log *logger.Logger) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "sentence-clips-store",
		Host:       "127.0.0.1",
		Port:       -1, // Use a random port
		JetStream:  true,
		StoreDir:   storeDir,
	}

	natsServer, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
	}

	go natsServer.Start()

	if !natsServer.ReadyForConnections(serverReadyTimeout) {
		natsServer.Shutdown()

		return nil, ErrServerNotReady
	}

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		natsServer.Shutdown()

		return nil, fmt.Errorf("failed to connect to embedded NATS server: %w", err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()
		natsServer.Shutdown()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	log.Info("Embedded NATS server ready on %s", natsServer.ClientURL())

	return &EmbeddedServer{
		natsServer:       natsServer,
		natsConnection:   natsConnection,
		jetstreamContext: jetstreamContext,
	}, nil
}

// JetStream exposes the context run store openers are built on.
func (e *EmbeddedServer) JetStream() nats.JetStreamContext {
	return e.jetstreamContext
}

// Shutdown closes the client connection and stops the server, blocking until
// the server has fully wound down.
func (e *EmbeddedServer) Shutdown() {
	e.natsConnection.Close()
	e.natsServer.Shutdown()
	e.natsServer.WaitForShutdown()
}
