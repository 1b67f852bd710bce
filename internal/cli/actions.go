package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tanglr "github.com/artyultra/tanglr-client"
	"github.com/artyultra/tanglr-client/internal/build"
	"github.com/artyultra/tanglr-client/internal/config"
	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
)

// withClient loads settings, builds a client for one command and closes it
// afterwards.
func withClient(c *cli.Context, fn func(ctx context.Context, client *tanglr.Client) error) error {
	settings, err := config.Load(c.String("config"), c.IsSet("config"))
	if err != nil {
		return err
	}

	b := tanglr.New().
		WithConfig(settings.Client).
		WithLogger(tanglr.NewLogger(settings.Client.Logging, c.App.ErrWriter))
	if settings.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: settings.RedisAddr})
		defer rdb.Close()
		b = b.WithRedis(rdb)
	}

	client, err := b.Build()
	if err != nil {
		return err
	}
	defer client.Close()

	client.OnSessionInvalidated(func(ev tanglr.SessionInvalidatedEvent) {
		fmt.Fprintln(c.App.ErrWriter, "session expired, run `tanglr login` again")
	})

	return fn(c.Context, client)
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func requireArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if arg == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return arg, nil
}

func loginAction(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, client *tanglr.Client) error {
		user, err := client.Login(ctx, c.String("username"), c.String("password"))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Logged in as %s\n", user.Username)
		return nil
	})
}

func signupAction(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, client *tanglr.Client) error {
		user, err := client.CreateUser(ctx, tanglr.CreateUserInput{
			Username: c.String("username"),
			Email:    c.String("email"),
			Password: c.String("password"),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Created account %s\n", user.Username)
		return nil
	})
}

func whoamiAction(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, client *tanglr.Client) error {
		user, err := client.CurrentUser(ctx)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, user)
	})
}

func userAction(c *cli.Context) error {
	username, err := requireArg(c, "username")
	if err != nil {
		return err
	}
	return withClient(c, func(ctx context.Context, client *tanglr.Client) error {
		user, err := client.GetUser(ctx, username)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, user)
	})
}

func avatarAction(c *cli.Context) error {
	avatarURL, err := requireArg(c, "avatar url")
	if err != nil {
		return err
	}
	return withClient(c, func(ctx context.Context, client *tanglr.Client) error {
		if err := client.PutAvatar(ctx, avatarURL); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "Avatar updated")
		return nil
	})
}

func postAction(c *cli.Context) error {
	body, err := requireArg(c, "post text")
	if err != nil {
		return err
	}
	return withClient(c, func(ctx context.Context, client *tanglr.Client) error {
		post, err := client.CreatePost(ctx, tanglr.CreatePostInput{Body: body})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Posted %s\n", post.ID)
		return nil
	})
}

func feedAction(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, client *tanglr.Client) error {
		var (
			posts []tanglr.PostDisplay
			err   error
		)
		if username := c.String("user"); username != "" {
			posts, err = client.GetPosts(ctx, username)
		} else {
			posts, err = client.GetAllPosts(ctx)
		}
		if err != nil {
			return err
		}
		for _, p := range posts {
			fmt.Fprintf(c.App.Writer, "@%s: %s\n", p.Username, p.Body)
		}
		return nil
	})
}

func friendsAction(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, client *tanglr.Client) error {
		me, err := client.CurrentUser(ctx)
		if err != nil {
			return err
		}
		if c.Bool("suggest") {
			users, err := client.GetNonFriends(ctx, me.Username)
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintln(c.App.Writer, u.Username)
			}
			return nil
		}

		friends, err := client.GetFriendsList(ctx, me.Username)
		if err != nil {
			return err
		}
		for _, f := range friends {
			fmt.Fprintf(c.App.Writer, "%s\t%s\n", f.FriendUsername, f.Status)
		}
		return nil
	})
}

func addFriendAction(c *cli.Context) error {
	friend, err := requireArg(c, "username")
	if err != nil {
		return err
	}
	return withClient(c, func(ctx context.Context, client *tanglr.Client) error {
		me, err := client.CurrentUser(ctx)
		if err != nil {
			return err
		}
		resp, err := client.AddFriend(ctx, me.Username, friend)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, resp.Message)
		return nil
	})
}

func refreshAction(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, client *tanglr.Client) error {
		if _, err := client.Refresh(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "Access token refreshed")
		return nil
	})
}

func logoutAction(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, client *tanglr.Client) error {
		if err := client.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "Logged out")
		return nil
	})
}

func revokeAction(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, client *tanglr.Client) error {
		if err := client.RevokeToken(ctx); err != nil {
			return fmt.Errorf("local session cleared, revocation failed: %w", err)
		}
		fmt.Fprintln(c.App.Writer, "Refresh token revoked")
		return nil
	})
}

func configureAction(c *cli.Context) error {
	out := c.String("output")
	if _, err := os.Stat(out); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists, pass --force to overwrite", out)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	settings, err := config.Load("", false)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	if err := os.WriteFile(out, config.Render(settings), 0o600); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", out)
	return nil
}

func versionAction(c *cli.Context) error {
	fmt.Fprintln(c.App.Writer, figure.NewFigure(appName, "cybermedium", true).String())

	info := build.Info()
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(c.App.Writer, "%-10s %s\n", k, info[k])
	}
	return nil
}
