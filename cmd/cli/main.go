// Package main provides the CLI tool for the menu-service.
// Uses Cobra for command parsing. Cobra is the standard Go CLI framework
// (used by kubectl, docker, hugo, and many others).
//
// Run with: go run ./cmd/cli scan menu.jpg --images
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fleveque/menu-service/internal/config"
	"github.com/fleveque/menu-service/internal/model"
	"github.com/fleveque/menu-service/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCmd creates the root command. Cobra builds a tree of commands:
// menu-cli scan menu.jpg --images
// menu-cli dish "pad thai"
func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "menu-cli",
		Short:        "Menu service CLI tools",
		SilenceUsage: true,
	}

	root.AddCommand(scanCmd(), dishCmd(), resolveCmd(), statsCmd())
	return root
}

// withDeps loads config, builds the same dependencies the server uses and
// hands them to fn with a context that Ctrl+C cancels.
func withDeps(fn func(ctx context.Context, deps *server.Deps, logger *zap.Logger) error) error {
	cfg, err := config.Load(os.Getenv("MENU_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Always use development mode for CLI
	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := server.BuildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	return fn(ctx, deps, logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// The commands depend on these rather than on the concrete services, so
// tests can drive them with fakes.
type menuDetector interface {
	DetectMenu(ctx context.Context, image []byte) model.MenuResult
}

type dishImageFinder interface {
	FindDishImage(ctx context.Context, dish string) model.DishImageResult
}

type imageResolver interface {
	Resolve(ctx context.Context, rawURL string) (*model.ResolvedImage, error)
}

// scanReport is what `scan` prints: the menu result plus, with --images, the
// image lookup for every dish.
type scanReport struct {
	Menu   model.MenuResult                 `json:"menu"`
	Images map[string]model.DishImageResult `json:"images,omitempty"`
}

// scanOptions are the flags of `scan`.
type scanOptions struct {
	withImages  bool
	concurrency int
}

func scanCmd() *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Extract dish names from a menu photo",
		Args:  cobra.ExactArgs(1),
		// RunE returns an error (vs Run which doesn't). Cobra prints the error automatically.
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading image: %w", err)
			}
			return withDeps(func(ctx context.Context, deps *server.Deps, logger *zap.Logger) error {
				return runScan(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), deps.MenuService, deps.DishService, image, opts)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.withImages, "images", false, "Also look up an image for every dish")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "Parallel image lookups")
	return cmd
}

func runScan(ctx context.Context, out, progress io.Writer, menus menuDetector, dishes dishImageFinder, image []byte, opts scanOptions) error {
	report := scanReport{Menu: menus.DetectMenu(ctx, image)}
	if report.Menu.IsError() {
		return fmt.Errorf("scan failed: %s", report.Menu.Message)
	}

	if opts.withImages && len(report.Menu.Items) > 0 {
		images, err := lookupImages(ctx, progress, dishes, report.Menu.Items, opts.concurrency)
		if err != nil {
			return err
		}
		report.Images = images
	}
	return printJSON(out, report)
}

// lookupImages resolves every dish in parallel, bounded by concurrency.
// Each goroutine writes its own slot, so no mutex is needed.
func lookupImages(ctx context.Context, progress io.Writer, finder dishImageFinder, dishes []string, concurrency int) (map[string]model.DishImageResult, error) {
	bar := progressbar.NewOptions(
		len(dishes),
		progressbar.OptionSetDescription("Looking up dish images"),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(progress) }),
	)

	results := make([]model.DishImageResult, len(dishes))

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, dish := range dishes {
		g.Go(func() error {
			results[i] = finder.FindDishImage(gctx, dish)
			_ = bar.Add(1)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	_ = bar.Finish()

	images := make(map[string]model.DishImageResult, len(dishes))
	for i, dish := range dishes {
		images[dish] = results[i]
	}
	return images, nil
}

func dishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dish <name>",
		Short: "Find a representative image URL for a dish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(ctx context.Context, deps *server.Deps, logger *zap.Logger) error {
				result := deps.DishService.FindDishImage(ctx, args[0])
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				if result.IsError() {
					return fmt.Errorf("lookup failed: %s", result.Message)
				}
				return nil
			})
		},
	}
}

func resolveCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "resolve <url>",
		Short: "Resolve a page or image URL to image bytes, like /proxy_image/",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(ctx context.Context, deps *server.Deps, logger *zap.Logger) error {
				return runResolve(ctx, cmd.ErrOrStderr(), deps.Resolver, args[0], output)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the image to this file")
	return cmd
}

// runResolve prints a one-line summary to out and, when output is set,
// writes the image bytes there.
func runResolve(ctx context.Context, out io.Writer, resolver imageResolver, rawURL, output string) error {
	img, err := resolver.Resolve(ctx, rawURL)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s (%s, %d bytes)\n", img.SourceURL, img.ContentType, len(img.Data))
	if output == "" {
		return nil
	}
	if err := os.WriteFile(output, img.Data, 0o644); err != nil {
		return fmt.Errorf("writing image: %w", err)
	}
	return nil
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print audit counters from the local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(ctx context.Context, deps *server.Deps, logger *zap.Logger) error {
				if deps.DB == nil {
					return fmt.Errorf("audit store disabled (storage.database_path is empty)")
				}

				counters := []struct {
					name  string
					count func(context.Context) (int64, error)
				}{
					{"menu scans", deps.ScanRepo.Count},
					{"menu scans failed", func(ctx context.Context) (int64, error) {
						return deps.ScanRepo.CountByStatus(ctx, model.StatusError)
					}},
					{"dish lookups", deps.LookupRepo.Count},
					{"dish lookups without image", deps.LookupRepo.CountMisses},
					{"llm filter calls", func(ctx context.Context) (int64, error) {
						return deps.LLMCallRepo.CountByPurpose(ctx, model.PurposeFilter)
					}},
					{"llm query calls", func(ctx context.Context) (int64, error) {
						return deps.LLMCallRepo.CountByPurpose(ctx, model.PurposeQuery)
					}},
					{"llm calls blocked", deps.LLMCallRepo.CountBlocked},
				}

				for _, c := range counters {
					n, err := c.count(ctx)
					if err != nil {
						return fmt.Errorf("counting %s: %w", c.name, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-28s %d\n", c.name, n)
				}
				return nil
			})
		},
	}
}
