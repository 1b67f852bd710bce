// Package cli implements the tanglr command line.
package cli

import (
	"github.com/artyultra/tanglr-client/internal/build"
	"github.com/artyultra/tanglr-client/internal/config"
	"github.com/urfave/cli/v2"
)

const appName = "tanglr"

// NewApp returns the tanglr command tree.
func NewApp() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Usage = "Talk to the Tanglr API from the terminal"
	app.Version = build.Version
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the HCL config file",
			Value:   config.DefaultFile,
			EnvVars: []string{"TANGLR_CONFIG"},
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:  "login",
			Usage: "Log in and store the session",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "username",
					Aliases:  []string{"u"},
					Usage:    "Account username",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "password",
					Aliases:  []string{"p"},
					Usage:    "Account password",
					EnvVars:  []string{"TANGLR_PASSWORD"},
					Required: true,
				},
			},
			Action: loginAction,
		},
		{
			Name:  "signup",
			Usage: "Create an account",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "New username", Required: true},
				&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Email address", Required: true},
				&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password", EnvVars: []string{"TANGLR_PASSWORD"}, Required: true},
			},
			Action: signupAction,
		},
		{
			Name:   "whoami",
			Usage:  "Show the logged-in profile",
			Action: whoamiAction,
		},
		{
			Name:      "user",
			Usage:     "Show a profile",
			ArgsUsage: "<username>",
			Action:    userAction,
		},
		{
			Name:      "avatar",
			Usage:     "Set the avatar URL of the logged-in user",
			ArgsUsage: "<url>",
			Action:    avatarAction,
		},
		{
			Name:      "post",
			Usage:     "Publish a post",
			ArgsUsage: "<text>",
			Action:    postAction,
		},
		{
			Name:  "feed",
			Usage: "List posts",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "user", Usage: "Only posts by this user"},
			},
			Action: feedAction,
		},
		{
			Name:  "friends",
			Usage: "List friends, or people who are not friends yet",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "suggest", Usage: "List users who are not friends"},
			},
			Action: friendsAction,
		},
		{
			Name:      "add-friend",
			Usage:     "Send a friend request",
			ArgsUsage: "<username>",
			Action:    addFriendAction,
		},
		{
			Name:   "refresh",
			Usage:  "Exchange the refresh token for a new access token",
			Action: refreshAction,
		},
		{
			Name:   "logout",
			Usage:  "End the session",
			Action: logoutAction,
		},
		{
			Name:   "revoke",
			Usage:  "Revoke the refresh token on the server and end the session",
			Action: revokeAction,
		},
		{
			Name:  "configure",
			Usage: "Write a config file with the current settings",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Destination file", Value: config.DefaultFile},
				&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
			},
			Action: configureAction,
		},
		{
			Name:   "version",
			Usage:  "Print build information",
			Action: versionAction,
		},
	}
	return app
}
