// Package mcpserver exposes quiz generation as an MCP tool.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/abhisek/codequiz/internal/chunk"
	"github.com/abhisek/codequiz/internal/orchestrator"
	"github.com/abhisek/codequiz/internal/plugin"
	"github.com/abhisek/codequiz/internal/quiz"
)

// ToolName is the name of the generation tool.
const ToolName = "generate_quiz"

// maxQuestions caps num_questions for a single tool call.
const maxQuestions = 20

// Runner executes a generation request.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// Server serves the generate_quiz tool.
type Server struct {
	runner   Runner
	settings orchestrator.Settings
	logger   *slog.Logger
}

// New creates a Server. settings apply to every call.
func New(runner Runner, settings orchestrator.Settings, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{runner: runner, settings: settings, logger: logger}
}

// Tool returns the tool definition.
func (s *Server) Tool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription("Generate quiz questions about a piece of source code. "+
			"Returns a JSON object with the accepted questions and a run summary."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Source code to quiz on. Long input is split into chunks.")),
		mcp.WithString("types", mcp.Description("Comma-separated question types: "+typeList()+". Empty means all.")),
		mcp.WithString("num_questions", mcp.Description("How many questions to return (1-"+strconv.Itoa(maxQuestions)+"). Default 5.")),
		mcp.WithString("difficulty", mcp.Description("easy, medium or hard")),
		mcp.WithString("language", mcp.Description("Programming language of the code, e.g. go")),
		mcp.WithString("chunk_lines", mcp.Description("Maximum lines per chunk. Default "+strconv.Itoa(chunk.DefaultMaxLines)+".")),
	)
}

// toolResult is the JSON body of a successful call.
type toolResult struct {
	RunID     string          `json:"run_id"`
	Questions []quiz.Question `json:"questions"`
	Accepted  int             `json:"accepted"`
	Rejected  int             `json:"rejected"`
	Calls     int             `json:"calls"`
	Complete  bool            `json:"complete"`
}

// Handle runs one generation. Bad arguments and run errors come back as
// tool errors so the client model can correct itself.
func (s *Server) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orq, err := s.request(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.runner.Run(ctx, orq)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoChunks) || errors.Is(err, orchestrator.ErrNoPlugins) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}

	questions := res.Questions
	if questions == nil {
		questions = []quiz.Question{}
	}
	body, err := json.Marshal(toolResult{
		RunID:     res.RunID,
		Questions: questions,
		Accepted:  res.Summary.Accepted,
		Rejected:  res.Summary.Rejected,
		Calls:     res.Summary.Calls,
		Complete:  res.Summary.Complete,
	})
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	s.logger.InfoContext(ctx, "tool call finished", "tool", ToolName, "run_id", res.RunID, "questions", len(questions))
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) request(req mcp.CallToolRequest) (orchestrator.Request, error) {
	code := req.GetString("code", "")
	if strings.TrimSpace(code) == "" {
		return orchestrator.Request{}, fmt.Errorf("code is required")
	}

	types, err := quiz.ParseTypes(strings.Split(req.GetString("types", ""), ","))
	if err != nil {
		return orchestrator.Request{}, err
	}

	n, err := intArg(req, "num_questions", 5)
	if err != nil {
		return orchestrator.Request{}, err
	}
	if n < 1 || n > maxQuestions {
		return orchestrator.Request{}, fmt.Errorf("num_questions must be between 1 and %d, got %d", maxQuestions, n)
	}
	lines, err := intArg(req, "chunk_lines", chunk.DefaultMaxLines)
	if err != nil {
		return orchestrator.Request{}, err
	}

	difficulty := strings.ToLower(req.GetString("difficulty", ""))
	switch difficulty {
	case "", "easy", "medium", "hard":
	default:
		return orchestrator.Request{}, fmt.Errorf("difficulty must be easy, medium or hard, got %q", difficulty)
	}

	return orchestrator.Request{
		Chunks:       chunk.Split(code, lines),
		Types:        types,
		NumQuestions: n,
		Settings:     s.settings,
		Options:      plugin.Options{Difficulty: difficulty},
		Language:     req.GetString("language", ""),
	}, nil
}

func intArg(req mcp.CallToolRequest, name string, def int) (int, error) {
	raw := strings.TrimSpace(req.GetString(name, ""))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return n, nil
}

func typeList() string {
	names := make([]string, 0, len(quiz.AllTypes()))
	for _, t := range quiz.AllTypes() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

// MCPServer builds the MCP server with the tool registered.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer("codequiz", version, server.WithToolCapabilities(false))
	srv.AddTool(s.Tool(), s.Handle)
	return srv
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}
