package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xnotehq/xnote/internal/app"
	"github.com/xnotehq/xnote/internal/auth"
	"github.com/xnotehq/xnote/internal/blocklist"
	"github.com/xnotehq/xnote/internal/classify"
	"github.com/xnotehq/xnote/internal/config"
	"github.com/xnotehq/xnote/internal/dispatch"
	"github.com/xnotehq/xnote/internal/download"
	"github.com/xnotehq/xnote/internal/extract"
	"github.com/xnotehq/xnote/internal/moderation"
	"github.com/xnotehq/xnote/internal/resolver"
	"github.com/xnotehq/xnote/internal/scraper"
	"github.com/xnotehq/xnote/internal/session"
	"github.com/xnotehq/xnote/internal/store"
	"github.com/xnotehq/xnote/internal/types"
	"github.com/xnotehq/xnote/internal/watch"
)

const usage = `xnote - moderation and download companion for X

Usage:
  xnote login              log in and capture session cookies
  xnote watch [url]        watch a timeline, folding and hiding as configured
  xnote media <url>        download a post's video or images
  xnote archive <url>      download a post bundle (text, images, video)
  xnote comments <url>     scrape a thread's replies to CSV
  xnote block <handle>     block a user and record it locally
  xnote resolve <url>      print a post's best MP4 URL
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Load or create configuration.
	cfg, err := config.Load()
	if err != nil {
		if os.IsNotExist(errors.Unwrap(err)) || os.IsNotExist(err) {
			cfg = config.Default()
			if err := cfg.Save(); err == nil {
				path, _ := config.Path()
				fmt.Fprintf(os.Stderr, "created default config at %s\n", path)
			}
		} else {
			fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
			os.Exit(1)
		}
	}

	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, moderation.ErrNeedsLogin) {
			log.Error("session expired, run `xnote login` first")
		} else {
			log.Error("command failed", zap.Error(err))
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, cmd string, args []string) error {
	cookiePath, err := auth.DefaultCookieStorePath()
	if err != nil {
		return fmt.Errorf("cookie store path: %w", err)
	}
	authMgr := auth.NewManager(auth.NewCookieStore(cookiePath), log)

	switch cmd {
	case "login":
		return authMgr.Login(ctx)
	case "watch":
		return runWatch(ctx, cfg, log, authMgr, optionalArg(args, cfg.Browser.Origin+"/home"))
	case "media":
		return runPostAction(ctx, cfg, log, authMgr, args, actionMedia)
	case "archive":
		return runPostAction(ctx, cfg, log, authMgr, args, actionArchive)
	case "comments":
		return runPostAction(ctx, cfg, log, authMgr, args, actionComments)
	case "block":
		if len(args) != 1 {
			return fmt.Errorf("usage: xnote block <handle>")
		}
		return runBlock(ctx, cfg, log, authMgr, strings.TrimPrefix(args[0], "@"))
	case "resolve":
		if len(args) != 1 {
			return fmt.Errorf("usage: xnote resolve <url>")
		}
		return runResolve(ctx, cfg, log, args[0])
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func optionalArg(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fallback
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

func openStore() (*store.Store, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return store.New(filepath.Join(dir, "xnote.db"))
}

// deps bundles the collaborators every browser-backed command shares.
type deps struct {
	sess       *session.Session
	st         *store.Store
	dispatcher *dispatch.Dispatcher
	blocked    *blocklist.Set
	refresher  *blocklist.Refresher
}

func buildDeps(ctx context.Context, cfg *config.Config, log *zap.Logger, authMgr *auth.Manager) (*deps, func(), error) {
	if !authMgr.IsAuthenticated() {
		return nil, nil, fmt.Errorf("no valid session: %w", moderation.ErrNeedsLogin)
	}
	cookies, err := authMgr.Cookies()
	if err != nil {
		return nil, nil, fmt.Errorf("load cookies: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	sess, err := session.New(ctx, cfg.Browser.Headless, cookies, log)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}

	local, err := st.LocalBlocklist()
	if err != nil {
		sess.Close()
		_ = st.Close()
		return nil, nil, fmt.Errorf("load local blocklist: %w", err)
	}
	blocked := blocklist.NewSet(local)

	httpClient := &http.Client{Timeout: 30 * time.Second}

	var community *moderation.CommunityClient
	var refresher *blocklist.Refresher
	if cfg.Shield.BaseURL != "" {
		community = moderation.NewCommunityClient(httpClient, cfg.Shield.BaseURL, cfg.Shield.APIKey, log)
		refresher = blocklist.NewRefresher(blocked, community,
			time.Duration(cfg.Shield.RefreshIntervalMin)*time.Minute, log)
	}

	res := resolver.New(httpClient, sess, cfg.Resolver.Endpoint, cfg.Resolver.Token, log)
	dl := download.New(httpClient, cfg.Download.Dir, log)
	sc := scraper.New(sess, log,
		scraper.WithLimit(cfg.Scrape.CommentLimit),
		scraper.WithWaitBounds(
			time.Duration(cfg.Scrape.WaitMinMs)*time.Millisecond,
			time.Duration(cfg.Scrape.WaitMaxMs)*time.Millisecond))
	blocker := moderation.NewBlockClient(httpClient, cfg.Browser.Origin, authMgr, log)

	d := &deps{
		sess:       sess,
		st:         st,
		dispatcher: dispatch.New(res, dl, sc, blocker, community, blocked, st, log),
		blocked:    blocked,
		refresher:  refresher,
	}
	cleanup := func() {
		d.dispatcher.Flush()
		sess.Close()
		_ = st.Close()
	}
	return d, cleanup, nil
}

func runWatch(ctx context.Context, cfg *config.Config, log *zap.Logger, authMgr *auth.Manager, url string) error {
	d, cleanup, err := buildDeps(ctx, cfg, log, authMgr)
	if err != nil {
		return err
	}
	defer cleanup()

	var refresher app.Refresher
	if d.refresher != nil {
		refresher = d.refresher
		if err := d.refresher.Start(ctx); err != nil {
			return fmt.Errorf("start blocklist refresher: %w", err)
		}
		defer d.refresher.Stop()
	}

	pipeline, err := app.New(d.sess, d.blocked, d.st, refresher, log)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	if err := d.sess.Navigate(ctx, url); err != nil {
		return err
	}
	pipeline.DiscoveryPass(ctx)

	log.Info("watching", zap.String("url", url))
	watcher := watch.New(d.sess, pipeline.DiscoveryPass, log)
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type postAction func(ctx context.Context, d *deps, post types.Post, log *zap.Logger) error

func runPostAction(ctx context.Context, cfg *config.Config, log *zap.Logger, authMgr *auth.Manager, args []string, action postAction) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one post URL")
	}
	url := args[0]
	pc := classify.PageContext{URL: url}
	if !pc.IsDetailPage() {
		return fmt.Errorf("%q is not a post URL", url)
	}

	d, cleanup, err := buildDeps(ctx, cfg, log, authMgr)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := d.sess.Navigate(ctx, url); err != nil {
		return err
	}
	post, err := mainPost(ctx, d.sess, pc)
	if err != nil {
		return err
	}
	return action(ctx, d, post, log)
}

// mainPost captures the detail page's addressed post.
func mainPost(ctx context.Context, sess *session.Session, pc classify.PageContext) (types.Post, error) {
	htmls, err := sess.Articles(ctx)
	if err != nil {
		return types.Post{}, fmt.Errorf("capture articles: %w", err)
	}
	for _, html := range htmls {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		if classify.IsMainPost(doc.Selection, pc) {
			post := extract.FromSelection(doc.Selection)
			if !post.HasID() {
				post.ID = pc.StatusID()
			}
			return post, nil
		}
	}
	return types.Post{}, fmt.Errorf("post %s not found on page", pc.StatusID())
}

func actionMedia(ctx context.Context, d *deps, post types.Post, log *zap.Logger) error {
	return d.dispatcher.DownloadMedia(ctx, post)
}

func actionArchive(ctx context.Context, d *deps, post types.Post, log *zap.Logger) error {
	return d.dispatcher.DownloadArchive(ctx, post)
}

func actionComments(ctx context.Context, d *deps, post types.Post, log *zap.Logger) error {
	progress := func(collected, limit int) {
		log.Info("scraping replies", zap.Int("collected", collected), zap.Int("limit", limit))
	}
	return d.dispatcher.DownloadComments(ctx, post, progress)
}

func runBlock(ctx context.Context, cfg *config.Config, log *zap.Logger, authMgr *auth.Manager, handle string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	blocker := moderation.NewBlockClient(httpClient, cfg.Browser.Origin, authMgr, log)

	local, err := st.LocalBlocklist()
	if err != nil {
		return err
	}
	blocked := blocklist.NewSet(local)

	var community *moderation.CommunityClient
	if cfg.Shield.BaseURL != "" {
		community = moderation.NewCommunityClient(httpClient, cfg.Shield.BaseURL, cfg.Shield.APIKey, log)
	}

	d := dispatch.New(nil, nil, nil, blocker, community, blocked, st, log)
	// The community report runs in the background; wait for it before exiting.
	defer d.Flush()
	return d.BlockUser(ctx, types.Post{AuthorHandle: handle})
}

// runResolve answers from the syndication API alone; no browser needed.
func runResolve(ctx context.Context, cfg *config.Config, log *zap.Logger, url string) error {
	pc := classify.PageContext{URL: url}
	id := pc.StatusID()
	if id == "" {
		return fmt.Errorf("%q is not a post URL", url)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	res := resolver.New(httpClient, nil, cfg.Resolver.Endpoint, cfg.Resolver.Token, log)
	mp4, err := res.Resolve(ctx, id)
	if err != nil {
		return err
	}
	fmt.Println(mp4)
	return nil
}
