package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dverner/edusim/internal/extract"
	"github.com/dverner/edusim/internal/llm"
	"github.com/dverner/edusim/internal/scene"
	"github.com/dverner/edusim/internal/session"
	"github.com/dverner/edusim/internal/sim"
	"github.com/dverner/edusim/internal/storage"
	"github.com/dverner/edusim/internal/template"
	"github.com/dverner/edusim/internal/tui"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "edusim",
		Short: "Turn physics word problems into interactive 2D simulations",
	}

	pf := root.PersistentFlags()
	pf.String("data", ".edusim", "session data directory")
	pf.String("templates", "", "extra template directory (built-ins always available)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")

	root.AddCommand(solveCmd(), runCmd(), templatesCmd(), sessionsCmd(), showCmd())
	return root
}

func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-backend", "openai", "LLM backend (openai, gemini)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for LLM (empty disables extraction)")
	f.String("llm-model", "llama3.2", "LLM model name")
}

func solveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve [template_id]",
		Short: "Start an interactive exercise session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve,
	}
	addLLMFlags(cmd)
	cmd.Flags().StringP("text", "t", "", "Exercise text (omit to use template defaults)")
	cmd.Flags().StringP("file", "f", "", "Read exercise text from a file")
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [template_id]",
		Short: "Run one simulation non-interactively and print the targets",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	addLLMFlags(cmd)
	cmd.Flags().StringP("text", "t", "", "Exercise text (omit to use template defaults)")
	cmd.Flags().StringP("file", "f", "", "Read exercise text from a file")
	cmd.Flags().Bool("save", false, "Save the outcome under the data directory")
	cmd.Flags().Bool("plot", false, "Plot the tracked body height over time")
	return cmd
}

func templatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List available exercise templates",
		RunE:  runTemplates,
	}
}

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List saved sessions",
		RunE:  runSessions,
	}
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [session_id]",
		Short: "Show a saved session",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
	cmd.Flags().Bool("plot", false, "Plot the stored trajectory height")
	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.Root().PersistentFlags())

	v.SetEnvPrefix("EDUSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("edusim")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/edusim")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// newManager wires the template store and, when a key is configured,
// the LLM extractor. Without a key the manager falls back to template
// defaults and the student tunes values by hand.
func newManager(v *viper.Viper) (*session.Manager, error) {
	store := template.NewStore(v.GetString("templates"))

	var extractor *extract.Extractor
	if v.GetString("llm-key") != "" {
		gen, err := llm.New(llm.Config{
			Backend: v.GetString("llm-backend"),
			BaseURL: v.GetString("llm-url"),
			APIKey:  v.GetString("llm-key"),
			Model:   v.GetString("llm-model"),
		})
		if err != nil {
			return nil, fmt.Errorf("create LLM client: %w", err)
		}
		extractor = extract.New(gen)
		slog.Info("LLM extraction enabled",
			"backend", v.GetString("llm-backend"),
			"model", v.GetString("llm-model"))
	}

	return session.NewManager(store, extractor), nil
}

func exerciseText(v *viper.Viper) (string, error) {
	if path := v.GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read exercise text: %w", err)
		}
		return string(data), nil
	}
	return v.GetString("text"), nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	mgr, err := newManager(v)
	if err != nil {
		return err
	}

	text, err := exerciseText(v)
	if err != nil {
		return err
	}

	// Interrupt aborts a hung extraction instead of killing the
	// process mid-startup.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	sess, err := mgr.StartExercise(ctx, args[0], text)
	cancel()
	if err != nil {
		return err
	}
	return tui.Run(sess)
}

func runBatch(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	mgr, err := newManager(v)
	if err != nil {
		return err
	}

	text, err := exerciseText(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	sess, err := mgr.StartExercise(ctx, args[0], text)
	if err != nil {
		return err
	}
	defer sess.Close()

	tpl := sess.Template()
	vp := sess.Validated()

	fmt.Printf("template: %s (%s)\n", tpl.ID, tpl.SimulationType)
	if sess.ManualFill() {
		fmt.Println("extraction unavailable, using template defaults")
	}
	fmt.Println("\nparameters:")
	for _, name := range tpl.Parameters.Names {
		spec, _ := tpl.Parameters.Get(name)
		val := vp.Values[name]
		fmt.Printf("  %-18s %10.3f %-6s (%s)\n", name, val.Value, spec.Unit, val.Status)
	}

	sc, err := scene.Build(tpl, vp)
	if err != nil {
		return err
	}
	tr, err := sim.Run(ctx, sc, sim.DefaultConfig())
	if err != nil {
		return err
	}
	targets, err := sim.ComputeTargets(sc, tr)
	if err != nil {
		return err
	}

	fmt.Println("\ntargets:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tVALUE\tUNIT\tTOLERANCE")
	for _, tgt := range tpl.Targets {
		fmt.Fprintf(w, "  %s\t%.4f\t%s\t±%.3g\n", tgt.ID, targets[tgt.ID], tgt.Unit, tgt.Tolerance)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if v.GetBool("plot") {
		plotHeights(tr.Samples)
	}

	if v.GetBool("save") {
		st := storage.New(v.GetString("data"))
		if err := st.Init(); err != nil {
			return err
		}
		id, err := st.Save(sess, targets, tr)
		if err != nil {
			return err
		}
		fmt.Printf("\nsaved session: %s\n", id)
	}
	return nil
}

func plotHeights(samples []sim.Sample) {
	if len(samples) < 2 {
		return
	}
	data := make([]float64, len(samples))
	for i, s := range samples {
		data[i] = s.Y
	}
	fmt.Println()
	fmt.Println(asciigraph.Plot(data,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption("height (m) vs step"),
	))
}

func runTemplates(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	store := template.NewStore(v.GetString("templates"))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tPARAMS\tTARGETS\tNAME")
	for _, id := range store.List() {
		tpl, err := store.Load(id)
		if err != nil {
			slog.Warn("skipping unreadable template", "id", id, "error", err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			tpl.ID, tpl.SimulationType, len(tpl.Parameters.Names), len(tpl.Targets), tpl.Name)
	}
	return w.Flush()
}

func runSessions(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	st := storage.New(v.GetString("data"))
	sessions, err := st.List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no saved sessions")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTEMPLATE\tTIME\tANSWERS\tCORRECT")
	for _, meta := range sessions {
		correct := 0
		for _, a := range meta.Answers {
			if a.Verdict == "correct" {
				correct++
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			meta.ID,
			meta.TemplateID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			len(meta.Answers),
			correct,
		)
	}
	return w.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	st := storage.New(v.GetString("data"))
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}

	if v.GetBool("plot") {
		samples, err := st.LoadTrajectory(args[0])
		if err != nil {
			return err
		}
		plotHeights(samples)
	}
	return nil
}
