// Command twitline is a terminal client for the twit API: sign in, browse
// the feed, compose posts with media, like and comment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"twitline/internal/composer"
	"twitline/internal/config"
	"twitline/internal/gateway"
	"twitline/internal/media"
	"twitline/internal/models"
	"twitline/internal/observability"
	"twitline/internal/session"
	"twitline/internal/store"
)

const usage = `Usage: twitline <command> [flags]

Commands:
  signup    -name NAME -email EMAIL -password PASS   create an account
  signin    -email EMAIL -password PASS              sign in
  signout                                            sign out
  whoami                                             show the current session
  feed                                               show the feed
  post      -content TEXT [-image FILE]... [-video FILE] [-edit ID]
  like      -id ID                                   like a twit
  unlike    -id ID                                   remove a like
  comment   -id ID -content TEXT                     comment on a twit
  delete    -id ID                                   delete a twit
  user      -id ID                                   show a user's twits
  liked     -id ID                                   show twits a user liked
`

// app bundles the wired client components a command operates on.
type app struct {
	cfg      *config.Config
	session  *session.Store
	gateway  *gateway.Client
	store    *store.PostStore
	composer *composer.Composer
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal(err)
	}

	shutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "twitline-cli",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExport,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.SamplerRatio,
	})
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() { _ = shutdown(context.Background()) }()

	a, err := wire(cfg)
	if err != nil {
		fatal(err)
	}

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, models.UserMessage(err, "complete the command"))
		os.Exit(1)
	}
}

// wire builds the session, gateway, store and composer stack.
func wire(cfg *config.Config) (*app, error) {
	sess, err := session.Open(cfg.SessionDBPath)
	if err != nil {
		return nil, err
	}
	if err := sess.Init(); err != nil {
		return nil, err
	}

	gw := gateway.New(cfg, sess, gateway.WithUnauthorizedHook(func() {
		fmt.Fprintln(os.Stderr, "Session expired. Please sign in again.")
	}))
	st := store.New(gw)
	up := media.NewUploader(cfg)

	return &app{
		cfg:      cfg,
		session:  sess,
		gateway:  gw,
		store:    st,
		composer: composer.New(up, st),
	}, nil
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "signup":
		return a.signup(ctx, args)
	case "signin":
		return a.signin(ctx, args)
	case "signout":
		return a.session.Clear()
	case "whoami":
		return a.whoami()
	case "feed":
		return a.feed(ctx)
	case "post":
		return a.post(ctx, args)
	case "like":
		return a.toggleLike(ctx, args, true)
	case "unlike":
		return a.toggleLike(ctx, args, false)
	case "comment":
		return a.comment(ctx, args)
	case "delete":
		return a.delete(ctx, args)
	case "user":
		return a.userPosts(ctx, args)
	case "liked":
		return a.likedPosts(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// authResponse is the /auth endpoints' wire shape.
type authResponse struct {
	Token string `json:"token"`
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	_ = fs.Parse(args)

	body, err := a.gateway.Post(ctx, "/auth/signup", map[string]string{
		"full_name": *name,
		"email":     *email,
		"password":  *password,
	})
	if err != nil {
		return err
	}
	return a.adoptToken(body)
}

func (a *app) signin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signin", flag.ExitOnError)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	_ = fs.Parse(args)

	body, err := a.gateway.Post(ctx, "/auth/signin", map[string]string{
		"email":    *email,
		"password": *password,
	})
	if err != nil {
		return err
	}
	return a.adoptToken(body)
}

func (a *app) adoptToken(body []byte) error {
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Token == "" {
		return models.NewServerError("Unexpected response from server.", err)
	}
	if err := a.session.SignIn(resp.Token); err != nil {
		return err
	}
	profile, _ := a.session.Profile()
	fmt.Printf("Signed in as %s\n", profile.FullName)
	return nil
}

func (a *app) whoami() error {
	profile, ok := a.session.Profile()
	if !ok {
		fmt.Println("Not signed in.")
		return nil
	}
	fmt.Printf("%s (user %d)\n", profile.FullName, profile.UserID)
	return nil
}

func (a *app) feed(ctx context.Context) error {
	posts, err := a.store.GetAllPosts(ctx)
	if err != nil {
		return err
	}
	printPosts(posts)
	return nil
}

func (a *app) post(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	content := fs.String("content", "", "twit text")
	video := fs.String("video", "", "video file to attach")
	edit := fs.Uint("edit", 0, "id of an existing twit to update")
	var images stringList
	fs.Var(&images, "image", "image file to attach (repeatable, up to 3)")
	_ = fs.Parse(args)

	if *edit != 0 {
		if existing, ok := a.store.Get(uint(*edit)); ok {
			a.composer.EditPost(existing)
		} else {
			a.composer.EditPost(models.Post{ID: uint(*edit)})
		}
	}
	a.composer.SetContent(*content)

	for _, path := range images {
		data, err := os.ReadFile(path)
		if err != nil {
			return models.NewValidationError(fmt.Sprintf("Cannot read image %s", path))
		}
		if err := a.composer.AttachImage(path, data); err != nil {
			return err
		}
	}
	if *video != "" {
		data, err := os.ReadFile(*video)
		if err != nil {
			return models.NewValidationError(fmt.Sprintf("Cannot read video %s", *video))
		}
		if err := a.composer.AttachVideo(*video, data); err != nil {
			return err
		}
	}

	result := a.composer.Submit(ctx)
	if !result.Success {
		return result.Err
	}
	fmt.Printf("Posted twit %d\n", result.Post.ID)
	return nil
}

func (a *app) toggleLike(ctx context.Context, args []string, like bool) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	var post *models.Post
	if like {
		post, err = a.store.LikePost(ctx, id)
	} else {
		post, err = a.store.UnlikePost(ctx, id)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Twit %d now has %d likes\n", post.ID, len(post.Likes))
	return nil
}

func (a *app) comment(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("comment", flag.ExitOnError)
	id := fs.Uint("id", 0, "twit id")
	content := fs.String("content", "", "comment text")
	_ = fs.Parse(args)

	if *id == 0 {
		return models.NewValidationError("A twit id is required")
	}
	comment, err := a.store.AddComment(ctx, uint(*id), *content)
	if err != nil {
		return err
	}
	fmt.Printf("Comment %d added\n", comment.ID)
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := a.store.DeletePost(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Twit %d deleted\n", id)
	return nil
}

func (a *app) userPosts(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	posts, err := a.store.GetUserPosts(ctx, id)
	if err != nil {
		return err
	}
	printPosts(posts)
	return nil
}

func (a *app) likedPosts(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	posts, err := a.store.FindPostsByLikesContainUser(ctx, id)
	if err != nil {
		return err
	}
	printPosts(posts)
	return nil
}

func parseID(args []string) (uint, error) {
	fs := flag.NewFlagSet("id", flag.ExitOnError)
	id := fs.Uint("id", 0, "twit or user id")
	_ = fs.Parse(args)
	if *id == 0 {
		return 0, models.NewValidationError("An id is required")
	}
	return uint(*id), nil
}

func printPosts(posts []models.Post) {
	for _, p := range posts {
		fmt.Printf("#%d %s — %s\n", p.ID, p.User.FullName, p.Content)
		if len(p.ImageURLs) > 0 {
			fmt.Printf("    images: %s\n", strings.Join(p.ImageURLs, ", "))
		}
		if p.VideoURL != "" {
			fmt.Printf("    video: %s (%.0fs)\n", p.VideoURL, p.VideoDuration)
		}
		fmt.Printf("    %d likes, %d comments\n", len(p.Likes), len(p.Comments))
		for _, c := range p.Comments {
			fmt.Printf("      %s: %s\n", c.User.FullName, c.Content)
		}
	}
	if len(posts) == 0 {
		fmt.Println("No twits.")
	}
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
