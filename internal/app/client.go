package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/snapsight/client/internal/api"
	"github.com/snapsight/client/internal/config"
	"github.com/snapsight/client/internal/history"
	"github.com/snapsight/client/internal/imaging"
	"github.com/snapsight/client/internal/resultcache"
	"github.com/snapsight/client/internal/session"
	"github.com/snapsight/client/internal/upload"
	"github.com/snapsight/client/internal/workflow"
)

// clientStack bundles the collaborators every client command needs.
type clientStack struct {
	cfg      config.Config
	sessions *session.FileStore
	client   *api.Client
	results  *resultcache.FileSlot
}

func buildClientStack() (clientStack, error) {
	cfg, err := config.Load()
	if err != nil {
		return clientStack{}, err
	}

	sessions := session.NewFileStore(cfg.TokenPath)
	client := api.New(cfg.APIBaseURL, sessions, api.WithAnalyzeTimeout(cfg.AnalyzeTimeout))

	return clientStack{
		cfg:      cfg,
		sessions: sessions,
		client:   client,
		results:  resultcache.NewFileSlot(cfg.ResultPath),
	}, nil
}

func runLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	remember := fs.Bool("remember", false, "keep the session for 7 days")
	callback := fs.String("callback", "", "finish the sign-in against this URL instead")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("login requires -email and -password")
	}

	stack, err := buildClientStack()
	if err != nil {
		return err
	}

	result, err := stack.client.SignInEmail(ctx, api.SignInParams{
		Email:       *email,
		Password:    *password,
		RememberMe:  *remember,
		CallbackURL: *callback,
	})
	if err != nil {
		return err
	}

	if result.Redirect {
		fmt.Printf("continue sign-in at %s\n", result.URL)
		return nil
	}

	if result.User != nil {
		fmt.Printf("signed in as %s\n", result.User.Email)
	} else {
		fmt.Println("signed in")
	}
	return nil
}

func runSignup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "account password")
	remember := fs.Bool("remember", false, "keep the session for 7 days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("signup requires -email and -password")
	}

	stack, err := buildClientStack()
	if err != nil {
		return err
	}

	result, err := stack.client.SignUpEmail(ctx, api.SignUpParams{
		Email:      *email,
		Name:       *name,
		Password:   *password,
		RememberMe: *remember,
	})
	if err != nil {
		return err
	}

	if result.User != nil {
		fmt.Printf("account created for %s\n", result.User.Email)
	} else {
		fmt.Println("account created")
	}
	return nil
}

func runGoogle(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("google", flag.ContinueOnError)
	code := fs.String("code", "", "authorization code from the provider redirect")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stack, err := buildClientStack()
	if err != nil {
		return err
	}

	// Without a code, start the flow and print the URL to open.
	if *code == "" {
		url, err := stack.client.SocialSignIn(ctx, "google")
		if err != nil {
			return err
		}
		fmt.Printf("open %s in a browser, then run: snapsight google -code <code>\n", url)
		return nil
	}

	result, err := stack.client.GoogleCallback(ctx, *code)
	if err != nil {
		return err
	}
	if result.User != nil {
		fmt.Printf("signed in as %s\n", result.User.Email)
	} else {
		fmt.Println("signed in")
	}
	return nil
}

func runLogout(ctx context.Context) error {
	stack, err := buildClientStack()
	if err != nil {
		return err
	}

	if err := stack.client.SignOut(ctx); err != nil {
		// The local token is gone either way; the server-side failure is
		// worth surfacing but not fatal to the local state.
		fmt.Fprintf(os.Stderr, "warning: server sign-out failed: %v\n", err)
	}
	fmt.Println("signed out")
	return nil
}

func runAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("analyze requires exactly one image path")
	}

	stack, err := buildClientStack()
	if err != nil {
		return err
	}

	file, err := loadImage(fs.Arg(0))
	if err != nil {
		return err
	}

	wf := workflow.New(stack.client, upload.New(nil), stack.client, stack.sessions, stack.results, workflow.Config{
		MaxUploadBytes: stack.cfg.MaxImageBytes,
		MaxDimension:   stack.cfg.MaxImageDimension,
		Language:       stack.cfg.Language,
		MaxSongs:       stack.cfg.MaxSongs,
		MaxTopics:      stack.cfg.MaxTopics,
	}, slog.Default())

	wf.OnProgress = func(percent int) {
		fmt.Printf("\ruploading... %3d%%", percent)
		if percent == 100 {
			fmt.Println()
		}
	}

	record, err := wf.Run(ctx, file)
	if err != nil {
		return err
	}

	return printJSON(record)
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", history.DefaultPageSize, "items per page")
	pages := fs.Int("pages", 1, "number of pages to fetch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stack, err := buildClientStack()
	if err != nil {
		return err
	}

	pager := history.NewPager(stack.client, *limit)
	pager.LoadFirstPage(ctx)
	for fetched := 1; fetched < *pages && pager.PageInfo().HasNextPage; fetched++ {
		pager.FetchNextPage(ctx)
	}

	if pager.Status() == history.StatusError {
		return errors.New(pager.Err())
	}

	items := pager.Items()
	if len(items) == 0 {
		fmt.Println("no history yet")
		return nil
	}

	for _, item := range items {
		fmt.Printf("%s  %s  %s\n", item.ID, item.CreatedAt.Format(time.RFC3339), item.FileKey)
	}
	if pager.PageInfo().HasNextPage {
		fmt.Println("(more available; rerun with -pages)")
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("show requires exactly one history id")
	}

	stack, err := buildClientStack()
	if err != nil {
		return err
	}

	source := history.NewCachingDetailSource(stack.client, 5*time.Minute)
	item, err := source.HistoryDetail(ctx, args[0])
	if err != nil {
		return err
	}

	return printJSON(item)
}

func runResult(_ context.Context) error {
	stack, err := buildClientStack()
	if err != nil {
		return err
	}

	record, ok := stack.results.Peek()
	if !ok {
		return errors.New("no analysis result cached; run analyze first")
	}

	return printJSON(record)
}

// loadImage reads an image from disk, resolving the content type from the
// file extension.
func loadImage(path string) (imaging.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return imaging.File{}, fmt.Errorf("read image: %w", err)
	}

	var contentType string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		contentType = imaging.ContentTypePNG
	case ".jpg", ".jpeg":
		contentType = imaging.ContentTypeJPEG
	case ".webp":
		contentType = imaging.ContentTypeWebP
	default:
		return imaging.File{}, fmt.Errorf("unsupported image extension %q", filepath.Ext(path))
	}

	return imaging.File{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
