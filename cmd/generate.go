package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/codequiz/internal/chunk"
	"github.com/abhisek/codequiz/internal/orchestrator"
	"github.com/abhisek/codequiz/internal/plugin"
	"github.com/abhisek/codequiz/internal/publish"
	"github.com/abhisek/codequiz/internal/quality"
	"github.com/abhisek/codequiz/internal/quiz"
	"github.com/abhisek/codequiz/internal/stream"
	"github.com/abhisek/codequiz/internal/tui/watch"
	"github.com/abhisek/codequiz/internal/ui/theme"
)

var generateCmd = &cobra.Command{
	Use:   "generate [file...]",
	Short: "Generate quiz questions from source files (or stdin)",
	Example: `  codequiz generate main.go --num 5
  codequiz generate --types fill-blank,true-false --stream < handler.go
  codequiz generate pkg/*.go --watch --premium`,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringSlice("types", nil, "Question types to generate (default all): "+strings.Join(typeNames(), ", "))
	f.IntP("num", "n", 5, "Number of questions to return")
	f.String("difficulty", "medium", "Difficulty: easy, medium, hard")
	f.Int("per-call", 2, "Candidates requested from each generator call")
	f.Bool("premium", false, "Apply the premium quality threshold")
	f.String("language", "", "Language of the code (default: guessed from the file extension)")
	f.Int("chunk-lines", chunk.DefaultMaxLines, "Maximum lines per code chunk")
	f.Int("concurrency", 0, "Concurrent generator calls (overrides config)")
	f.Int("max-calls", 0, "Maximum generator calls per run (overrides config)")
	f.Bool("no-quality", false, "Skip the quality gate")
	f.Bool("stream", false, "Write NDJSON records to stdout as questions are accepted")
	f.Bool("watch", false, "Show a live view while generating")
	f.Bool("publish", false, "Publish accepted questions to the configured Pub/Sub topic")
	generateCmd.MarkFlagsMutuallyExclusive("stream", "watch")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	typeArgs, _ := flags.GetStringSlice("types")
	types, err := quiz.ParseTypes(typeArgs)
	if err != nil {
		return err
	}
	chunkLines, _ := flags.GetInt("chunk-lines")
	language, _ := flags.GetString("language")
	chunks, guessed, err := readChunks(cmd.InOrStdin(), args, chunkLines)
	if err != nil {
		return err
	}
	if language == "" {
		language = guessed
	}

	noQuality, _ := flags.GetBool("no-quality")
	a, err := newApp(cmd, noQuality)
	if err != nil {
		return err
	}
	defer a.Close()

	settings := a.cfg.Settings()
	if n, _ := flags.GetInt("concurrency"); n > 0 {
		settings.Concurrency = n
	}
	if n, _ := flags.GetInt("max-calls"); n > 0 {
		settings.MaxCalls = n
	}
	num, _ := flags.GetInt("num")
	difficulty, _ := flags.GetString("difficulty")
	perCall, _ := flags.GetInt("per-call")
	premium, _ := flags.GetBool("premium")

	req := orchestrator.Request{
		Chunks:       chunks,
		Types:        types,
		NumQuestions: num,
		Settings:     settings,
		Credentials:  plugin.Credentials{Premium: premium},
		Options:      plugin.Options{Difficulty: difficulty, NumQuestions: perCall},
		Language:     language,
	}

	var sinks []orchestrator.Sink
	if pub, _ := flags.GetBool("publish"); pub {
		if a.cfg.Publish.Topic == "" {
			return fmt.Errorf("--publish needs publish.project and publish.topic in the config")
		}
		ps, err := publish.NewPubSubSink(ctx, a.cfg.Publish.Project, a.cfg.Publish.Topic, a.logger)
		if err != nil {
			return err
		}
		defer ps.Close()
		sinks = append(sinks, ps)
	}

	out := cmd.OutOrStdout()
	switch {
	case flagSet(cmd, "stream"):
		return generateStream(ctx, a, req, sinks, out)
	case flagSet(cmd, "watch"):
		res, err := watch.Run(ctx, req.NumQuestions, func(ctx context.Context, sink orchestrator.Sink) (*orchestrator.Result, error) {
			req.Sink = orchestrator.MultiSink(append(sinks, sink)...)
			return a.orch.Run(ctx, req)
		})
		if err != nil {
			return err
		}
		return writeJSON(out, res.Questions)
	default:
		if len(sinks) > 0 {
			req.Sink = orchestrator.MultiSink(sinks...)
		}
		res, err := a.orch.Run(ctx, req)
		if err != nil {
			return err
		}
		printSummary(cmd.ErrOrStderr(), res)
		printGateStats(cmd.ErrOrStderr(), a.router.Stats())
		return writeJSON(out, res.Questions)
	}
}

func generateStream(ctx context.Context, a *app, req orchestrator.Request, sinks []orchestrator.Sink, out io.Writer) error {
	w := stream.NewWriter(out)
	if err := w.Write(stream.Meta(req.NumQuestions)); err != nil {
		return err
	}
	req.Sink = orchestrator.MultiSink(append(sinks, stream.NDJSONSink{W: w})...)
	res, err := a.orch.Run(ctx, req)
	if err != nil {
		_ = w.Write(stream.Error(err.Error()))
		return err
	}
	return w.Write(stream.Done(len(res.Questions)))
}

// readChunks reads each file, or stdin when there are none or the name is
// "-", and splits the contents into chunks. The second result is the
// language guessed from the first file extension.
func readChunks(stdin io.Reader, files []string, maxLines int) ([]string, string, error) {
	if len(files) == 0 {
		files = []string{"-"}
	}
	var (
		chunks []string
		lang   string
	)
	for _, name := range files {
		var data []byte
		var err error
		if name == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(name)
			if lang == "" {
				lang = languageFor(name)
			}
		}
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", name, err)
		}
		chunks = append(chunks, chunk.Split(string(data), maxLines)...)
	}
	if len(chunks) == 0 {
		return nil, "", fmt.Errorf("no code to quiz on")
	}
	return chunks, lang, nil
}

var extLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".php":   "php",
	".sh":    "bash",
	".sql":   "sql",
}

func languageFor(path string) string {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}

func typeNames() []string {
	names := make([]string, 0, len(quiz.AllTypes()))
	for _, t := range quiz.AllTypes() {
		names = append(names, string(t))
	}
	return names
}

func flagSet(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, res *orchestrator.Result) {
	s := res.Summary
	status := theme.Good.Render("complete")
	if !s.Complete {
		status = theme.Warn.Render("short")
	}
	fmt.Fprintf(w, "%s %s  %d/%d accepted  %d rejected  %d calls (%d failed)  %s\n",
		theme.Title.Render("codequiz"), status,
		s.Accepted, s.Target, s.Rejected, s.Calls, s.Failed,
		theme.Label.Render(s.Elapsed.Round(time.Millisecond).String()))
	for _, t := range s.Shortfall {
		fmt.Fprintf(w, "  %s no acceptable %s questions\n", theme.Warn.Render("!"), t)
	}
}

func printGateStats(w io.Writer, stats []quality.TypeStats) {
	for _, st := range stats {
		fmt.Fprintf(w, "  %s %s\n", theme.TypeBadge(st.Type), gateStatsLine(st))
	}
}

// gateStatsLine describes one type's gate counts. Failed ratings are part
// of the rejected count; pre-filtered candidates are not.
func gateStatsLine(st quality.TypeStats) string {
	return fmt.Sprintf("kept %d, rejected %d after rating (%d rating failures), pre-filtered %d, avg score %.1f",
		st.Accepted, st.Rejected, st.Failed, st.PreFiltered, st.AvgScore())
}
