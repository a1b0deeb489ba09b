// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Gebo publish tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/halvard/gebo/internal/forms"
	"github.com/halvard/gebo/internal/media"
	"github.com/halvard/gebo/internal/metadata"
	"github.com/halvard/gebo/internal/publish"
	"github.com/halvard/gebo/internal/pubservice"
	"github.com/halvard/gebo/internal/session"
)

// Server wraps the MCP server with Gebo tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *pubservice.Service
	sessions *session.Manager
	uploader media.Uploader
}

// New creates a new MCP server with all Gebo tools registered.
func New(svc *pubservice.Service, sessions *session.Manager, uploader media.Uploader) *Server {
	s := &Server{svc: svc, sessions: sessions, uploader: uploader}

	s.mcp = server.NewMCPServer(
		"Gebo",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("login",
		mcp.WithDescription("Bind a wallet address and profile id to the session. "+
			"Required before any publish tool."),
		mcp.WithString("address", mcp.Required(), mcp.Description("Wallet address to act as")),
		mcp.WithString("profile_id", mcp.Required(), mcp.Description("Profile id to publish as")),
		mcp.WithString("handle", mcp.Description("Optional profile handle")),
	), s.login)

	s.mcp.AddTool(mcp.NewTool("publish_opportunity",
		mcp.WithDescription("Publish a volunteer opportunity post. Field formats MUST follow "+
			"the record contract; read it first via the get_record_contract tool or the "+
			"gebo://record-format resource. Pass record_id to republish an existing post."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Opportunity name (max 100 chars)")),
		mcp.WithString("startDate", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("endDate", mcp.Description("Optional end date, YYYY-MM-DD")),
		mcp.WithString("hoursPerWeek", mcp.Required(), mcp.Description("Hours per week, positive with at most one decimal")),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category (max 40 chars)")),
		mcp.WithString("website", mcp.Description("Optional website URL")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Description (max 250 chars)")),
		mcp.WithString("imageUrl", mcp.Description("Media reference from upload_asset, or the existing reference when editing")),
		mcp.WithString("record_id", mcp.Description("Original record id when republishing an existing post")),
	), s.publishOpportunity)

	s.mcp.AddTool(mcp.NewTool("set_goal",
		mcp.WithDescription("Publish a reward goal post. The most recent goal drives the dashboard."),
		mcp.WithString("goal", mcp.Required(), mcp.Description("Target amount, positive with at most one decimal")),
		mcp.WithString("goalDate", mcp.Description("Optional target date, YYYY-MM-DD")),
	), s.setGoal)

	s.mcp.AddTool(mcp.NewTool("get_vhr_summary",
		mcp.WithDescription("Reward-token balance and goal progress for the session profile."),
	), s.getVHRSummary)

	s.mcp.AddTool(mcp.NewTool("list_submissions",
		mcp.WithDescription("List recent terminal publish attempts with their outcomes."),
		mcp.WithString("limit", mcp.Description("Max results (default 50)")),
	), s.listSubmissions)

	s.mcp.AddTool(mcp.NewTool("create_profile",
		mcp.WithDescription("Register a new profile handle for a wallet address. "+
			"Handles are 5-31 lowercase letters and digits."),
		mcp.WithString("address", mcp.Required(), mcp.Description("Wallet address that will own the profile")),
		mcp.WithString("handle", mcp.Required(), mcp.Description("Handle to register")),
	), s.createProfile)

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the canonical Gebo record format contract. "+
			"Call this before publishing to ensure correct field formats."),
	), s.getRecordContract)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Download an image from a URL (or decode a base64 data URI) and "+
			"store it in the media backend. Returns the reference to pass as imageUrl."),
		mcp.WithString("url", mcp.Required(), mcp.Description("HTTP(S) URL or data: URI of the image")),
		mcp.WithString("filename", mcp.Description("Optional filename hint (extension decides the type)")),
	), s.uploadAsset)

	// Resource: record format contract.
	s.mcp.AddResource(
		mcp.NewResource("gebo://record-format", "Record Format Contract",
			mcp.WithResourceDescription("Canonical tagged-record format for all published posts."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// author resolves the session identity or reports the missing-profile error.
func (s *Server) author() (metadata.Author, error) {
	sess, ok := s.sessions.Current()
	if !ok {
		return metadata.Author{}, errors.New("profile null: call the login tool first")
	}
	return metadata.Author{Address: sess.Address, ProfileID: sess.ProfileID}, nil
}

func (s *Server) login(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, err := req.RequireString("address")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	profileID, err := req.RequireString("profile_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	handle := ""
	if h, hErr := req.RequireString("handle"); hErr == nil {
		handle = h
	}
	sess := s.sessions.Login(address, profileID, handle)
	return mcp.NewToolResultText(fmt.Sprintf("logged in as profile %s (%s)", sess.ProfileID, sess.Address)), nil
}

// publishResult renders a terminal workflow result for the tool caller.
func publishResult(res publish.Result) *mcp.CallToolResult {
	if res.State == publish.StateSucceeded {
		out, _ := json.Marshal(map[string]string{
			"state":     string(res.State),
			"reference": res.Reference,
			"record_id": res.Record.ID,
		})
		return mcp.NewToolResultText(string(out))
	}
	return mcp.NewToolResultError(fmt.Sprintf("publish failed: %s", res.Reason))
}

// publishErr renders errors raised before a terminal result.
func publishErr(err error) *mcp.CallToolResult {
	var verr *pubservice.ValidationError
	if errors.As(err, &verr) {
		out, _ := json.Marshal(verr.Fields)
		return mcp.NewToolResultError(fmt.Sprintf("validation failed: %s", out))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) publishOpportunity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	author, err := s.author()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	values := make(forms.Values)
	for _, name := range []string{"name", "startDate", "endDate", "hoursPerWeek", "category", "website", "description"} {
		if v, vErr := req.RequireString(name); vErr == nil {
			values[name] = v
		}
	}
	recordID := ""
	if v, vErr := req.RequireString("record_id"); vErr == nil {
		recordID = v
	}
	imageRef := ""
	if v, vErr := req.RequireString("imageUrl"); vErr == nil {
		imageRef = v
	}

	var res publish.Result
	if recordID != "" || imageRef != "" {
		res, err = s.svc.ModifyOpportunity(ctx, author, recordID, imageRef, values, nil)
	} else {
		res, err = s.svc.PublishOpportunity(ctx, author, values, nil)
	}
	if err != nil {
		return publishErr(err), nil
	}
	return publishResult(res), nil
}

func (s *Server) setGoal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	author, err := s.author()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	values := make(forms.Values)
	for _, name := range []string{"goal", "goalDate"} {
		if v, vErr := req.RequireString(name); vErr == nil {
			values[name] = v
		}
	}

	res, err := s.svc.PublishGoal(ctx, author, values)
	if err != nil {
		return publishErr(err), nil
	}
	return publishResult(res), nil
}

func (s *Server) getVHRSummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	author, err := s.author()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, err := s.svc.VHRSummary(ctx, author.Address, author.ProfileID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(summary, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listSubmissions(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 0
	if v, err := req.RequireString("limit"); err == nil {
		limit, _ = strconv.Atoi(v)
	}
	subs, err := s.svc.Submissions(limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(subs) == 0 {
		return mcp.NewToolResultText("no submissions yet"), nil
	}
	out, _ := json.MarshalIndent(subs, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, err := req.RequireString("address")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	handle, err := req.RequireString("handle")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, err := s.svc.CreateProfile(ctx, address, handle)
	if err != nil {
		return publishErr(err), nil
	}
	out, _ := json.Marshal(p)
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getRecordContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readRecordFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "gebo://record-format",
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}
