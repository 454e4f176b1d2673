package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/adapters/console"
	httpadapter "github.com/aretw0/parley/pkg/adapters/http"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// DefaultReplyTimeout bounds how long send_message waits for the assistant.
const DefaultReplyTimeout = 5 * time.Second

// ReplyResponse is what the assistant said after a message.
type ReplyResponse struct {
	ConversationID string               `json:"conversation_id" jsonschema_description:"The conversation the message was sent to"`
	Messages       []domain.Message     `json:"messages" jsonschema_description:"Replies produced since the message was sent"`
	Expecting      domain.ValueCategory `json:"expecting,omitempty" jsonschema_description:"Kind of answer the assistant is waiting for, if any"`
}

// CancelResponse reports whether a pending question was aborted.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type sendArgs struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

type conversationArgs struct {
	ConversationID string `json:"conversation_id"`
}

// Server exposes the conversations of a session manager as MCP tools.
type Server struct {
	sessions  *session.Manager
	streams   *httpadapter.StreamManager
	mcpServer *server.MCPServer
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithReplyTimeout sets how long send_message waits for replies.
func WithReplyTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance. Conversations created through
// sessions must reply through streams.
func NewServer(sessions *session.Manager, streams *httpadapter.StreamManager, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		streams:   streams,
		mcpServer: server.NewMCPServer("parley-mcp", strings.TrimSpace(parley.Version)),
		timeout:   DefaultReplyTimeout,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: send_message
	sendTool := mcp.NewTool("send_message",
		mcp.WithDescription("Say something to the assistant and get its replies."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation to talk in; it is started if needed")),
		mcp.WithString("text", mcp.Required(), mcp.Description("What the user says")),
		mcp.WithOutputSchema[ReplyResponse](),
	)
	s.mcpServer.AddTool(sendTool, mcp.NewStructuredToolHandler(s.handleSendMessage))

	// TOOL: notify
	notifyTool := mcp.NewTool("notify",
		mcp.WithDescription("Deliver a notification from an app to the user once the conversation is idle."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation to notify")),
		mcp.WithString("app_id", mcp.Description("App the notification comes from")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Notification text")),
	)
	s.mcpServer.AddTool(notifyTool, s.handleNotify)

	// TOOL: cancel
	cancelTool := mcp.NewTool("cancel",
		mcp.WithDescription("Abort the question the assistant is waiting on."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation to cancel")),
		mcp.WithOutputSchema[CancelResponse](),
	)
	s.mcpServer.AddTool(cancelTool, mcp.NewStructuredToolHandler(s.handleCancel))

	// TOOL: get_state
	stateTool := mcp.NewTool("get_state",
		mcp.WithDescription("Get the dialogue state of a conversation as of its last turn."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation to inspect")),
		mcp.WithOutputSchema[domain.Snapshot](),
	)
	s.mcpServer.AddTool(stateTool, mcp.NewStructuredToolHandler(s.handleGetState))
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest, args sendArgs) (ReplyResponse, error) {
	text, err := console.SanitizeInput(args.Text)
	if err != nil {
		s.logger.Warn("MCP send_message: Input rejected", "err", err, "size", len(args.Text))
		return ReplyResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	if text == "" {
		return ReplyResponse{}, errors.New("input rejected: empty message")
	}

	a, err := s.sessions.GetOrStart(args.ConversationID)
	if err != nil {
		return ReplyResponse{}, err
	}

	offset := len(s.streams.Messages(args.ConversationID, 0))
	fut, err := a.HandleText(ctx, text)
	if err != nil {
		return ReplyResponse{}, fmt.Errorf("send failed: %w", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := a.AwaitReply(waitCtx, fut); err != nil {
		s.logger.Debug("MCP send_message: Stopped waiting for replies", "conversation_id", args.ConversationID, "err", err)
	}

	messages := s.streams.Messages(args.ConversationID, offset)
	if messages == nil {
		messages = []domain.Message{}
	}
	return ReplyResponse{
		ConversationID: args.ConversationID,
		Messages:       messages,
		Expecting:      a.Expecting(),
	}, nil
}

func (s *Server) handleNotify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	a, err := s.sessions.GetOrStart(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := a.Notify(ctx, request.GetString("app_id", ""), "", "String", message); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("notify failed: %v", err)), nil
	}
	return mcp.NewToolResultText("queued"), nil
}

func (s *Server) handleCancel(ctx context.Context, request mcp.CallToolRequest, args conversationArgs) (CancelResponse, error) {
	a, ok := s.sessions.Get(args.ConversationID)
	return CancelResponse{Cancelled: ok && a.Cancel()}, nil
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest, args conversationArgs) (domain.Snapshot, error) {
	snap, err := s.sessions.Snapshot(ctx, args.ConversationID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("get state failed: %w", err)
	}
	return *snap, nil
}

func (s *Server) registerResources() {
	// EXPOSE: parley://conversations
	s.mcpServer.AddResource(mcp.NewResource("parley://conversations", "Known Conversations",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.sessions.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list conversations: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "parley://conversations",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
