package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/mosromgr/internal/export"
	"github.com/dusk-indust/mosromgr/internal/mos"
	"github.com/dusk-indust/mosromgr/internal/orchestrator"
	"github.com/dusk-indust/mosromgr/internal/rograph"
	"github.com/dusk-indust/mosromgr/internal/source"
)

const defaultQueryLimit = 20

// Service holds what the MCP tool handlers and the HTTP API share: the graph
// index and the hooks every merge reports to.
type Service struct {
	graph      rograph.Store
	onProgress func(orchestrator.ProgressEvent)
	onMerge    func(*orchestrator.Result, error, time.Duration)
	log        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithProgress receives every progress event of every merge.
func WithProgress(fn func(orchestrator.ProgressEvent)) Option {
	return func(s *Service) { s.onProgress = fn }
}

// WithMergeHook is called once per merge with its outcome and duration.
func WithMergeHook(fn func(*orchestrator.Result, error, time.Duration)) Option {
	return func(s *Service) { s.onMerge = fn }
}

// WithLogger sets the logger handed to collections.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a Service. graph may be nil, in which case indexing
// and story queries are unavailable.
func NewService(graph rograph.Store, opts ...Option) *Service {
	s := &Service{graph: graph, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Detect classifies one message.
func (s *Service) Detect(ctx context.Context, in DetectMessageInput) (DetectMessageOutput, error) {
	data, err := source.Bytes{Name: in.Name, Data: []byte(in.XML)}.Fetch(ctx)
	if err != nil {
		return DetectMessageOutput{}, err
	}
	m, err := mos.Parse(data)
	if errors.Is(err, mos.ErrIgnoredType) {
		return DetectMessageOutput{Ignored: true}, nil
	}
	if err != nil {
		return DetectMessageOutput{}, err
	}
	return DetectMessageOutput{
		Kind:      m.Kind().String(),
		MessageID: m.MessageID(),
		ROID:      m.ROID(),
		Completed: m.Completed(),
	}, nil
}

// Inspect summarizes a roCreate message or merged running order.
func (s *Service) Inspect(_ context.Context, in InspectRunningOrderInput) (InspectRunningOrderOutput, error) {
	ro, err := mos.ParseRunningOrder([]byte(in.XML))
	if err != nil {
		return InspectRunningOrderOutput{}, err
	}
	return InspectRunningOrderOutput{RunningOrder: *export.ExportRunningOrder(ro, in.Script)}, nil
}

// Merge merges one collection of messages. A strict abort returns the
// partial output with the error.
func (s *Service) Merge(ctx context.Context, in MergeMessagesInput) (MergeMessagesOutput, error) {
	return s.MergeWithProgress(ctx, in, nil)
}

// MergeWithProgress is Merge with an extra progress callback for this merge
// only. fn may be called from several goroutines at once.
func (s *Service) MergeWithProgress(ctx context.Context, in MergeMessagesInput, fn func(orchestrator.ProgressEvent)) (MergeMessagesOutput, error) {
	if len(in.Messages) == 0 {
		return MergeMessagesOutput{}, fmt.Errorf("%w: no messages", orchestrator.ErrInvalidCollection)
	}
	if in.Index && s.graph == nil {
		return MergeMessagesOutput{}, errors.New("graph index is not configured")
	}
	srcs := make([]source.Source, len(in.Messages))
	for i, m := range in.Messages {
		name := m.Name
		if name == "" {
			name = fmt.Sprintf("message-%d", i)
		}
		srcs[i] = source.Bytes{Name: name, Data: []byte(m.XML)}
	}

	opts := orchestrator.Options{
		AllowIncomplete: in.AllowIncomplete,
		OnProgress:      orchestrator.Tee(s.onProgress, fn),
		Logger:          s.log,
	}
	if in.NonStrict {
		opts.Policy = orchestrator.NonStrict
	}

	res, err := s.merge(ctx, srcs, opts)
	if res == nil {
		return MergeMessagesOutput{}, err
	}
	out, buildErr := s.output(ctx, res, in.Index && err == nil)
	if err == nil {
		err = buildErr
	}
	return out, err
}

func (s *Service) merge(ctx context.Context, srcs []source.Source, opts orchestrator.Options) (res *orchestrator.Result, err error) {
	if s.onMerge != nil {
		start := time.Now()
		defer func() { s.onMerge(res, err, time.Since(start)) }()
	}
	c, err := orchestrator.New(ctx, srcs, opts)
	if err != nil {
		return nil, err
	}
	return c.Merge(ctx)
}

func (s *Service) output(ctx context.Context, res *orchestrator.Result, index bool) (MergeMessagesOutput, error) {
	ro := res.RunningOrder
	xml, err := ro.XML()
	if err != nil {
		return MergeMessagesOutput{}, err
	}
	out := MergeMessagesOutput{
		RunID:     res.RunID,
		ROID:      ro.ROID(),
		Completed: ro.Completed(),
		Applied:   res.Applied,
		Skipped:   res.Skipped,
		XML:       string(xml),
	}
	for _, d := range res.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{
			Code:      d.Code(),
			MessageID: d.MessageID,
			Kind:      d.Kind.String(),
			Source:    d.Source,
			Detail:    d.Error(),
		})
	}
	if index {
		if _, err := rograph.Index(ctx, s.graph, ro); err != nil {
			return out, fmt.Errorf("index: %w", err)
		}
		out.Indexed = true
	}
	return out, nil
}

// QueryStories searches indexed story slugs.
func (s *Service) QueryStories(ctx context.Context, in QueryStoriesInput) (QueryStoriesOutput, error) {
	if s.graph == nil {
		return QueryStoriesOutput{}, errors.New("graph index is not configured")
	}
	if in.Query == "" {
		return QueryStoriesOutput{}, errors.New("query is required")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	stories, err := s.graph.QueryStories(ctx, in.Query, limit)
	if err != nil {
		return QueryStoriesOutput{}, fmt.Errorf("query stories: %w", err)
	}
	if stories == nil {
		stories = []rograph.StoryNode{}
	}
	return QueryStoriesOutput{Stories: stories}, nil
}

// --- MCP tool handlers ---

func (s *Service) detectTool(ctx context.Context, _ *mcp.CallToolRequest, in DetectMessageInput) (*mcp.CallToolResult, DetectMessageOutput, error) {
	out, err := s.Detect(ctx, in)
	return nil, out, err
}

func (s *Service) inspectTool(ctx context.Context, _ *mcp.CallToolRequest, in InspectRunningOrderInput) (*mcp.CallToolResult, InspectRunningOrderOutput, error) {
	out, err := s.Inspect(ctx, in)
	return nil, out, err
}

func (s *Service) mergeTool(ctx context.Context, _ *mcp.CallToolRequest, in MergeMessagesInput) (*mcp.CallToolResult, MergeMessagesOutput, error) {
	out, err := s.Merge(ctx, in)
	return nil, out, err
}

func (s *Service) queryStoriesTool(ctx context.Context, _ *mcp.CallToolRequest, in QueryStoriesInput) (*mcp.CallToolResult, QueryStoriesOutput, error) {
	out, err := s.QueryStories(ctx, in)
	return nil, out, err
}
