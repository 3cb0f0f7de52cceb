package main

import (
	"bufio"
	"bytes"
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/logging"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/auth"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/services"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

type createUserOptions struct {
	email         string
	name          string
	role          string
	passwordStdin bool
	stdinFd       int
}

// NewCreateUserCmd creates the create-user subcommand.
func NewCreateUserCmd() *cobra.Command {
	opts := &createUserOptions{}
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account with any role",
		Long: `Create an account directly in the database. This is the only way to
create ADMIN accounts. The password is prompted for without echo unless
--password-stdin is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreateUser(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&opts.name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.role, "role", string(models.RoleAdmin), "role: STUDENT, PROFESSOR or ADMIN")
	cmd.Flags().BoolVar(&opts.passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runCreateUser(cmd *cobra.Command, opts *createUserOptions) error {
	role, ok := models.ParseRole(opts.role)
	if !ok {
		return oops.Code("INVALID_ROLE").Errorf("unknown role %q", opts.role)
	}

	if err := validator.New().Var(strings.TrimSpace(opts.email), "required,email"); err != nil {
		return oops.Code("INVALID_EMAIL").Errorf("%q is not a valid email address", opts.email)
	}

	password, err := obtainPassword(cmd, opts)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	repos, err := openMigrated(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.Close()

	logger := logging.NewJSONLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	tokens := auth.NewTokenIssuer([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration, cfg.TokenLeeway)
	users := services.NewUserService(repos, cfg, hasher, tokens, nil, nil, logger)

	user, err := users.Register(ctx, services.RegisterInput{
		Email:    opts.email,
		Password: password,
		Name:     opts.name,
		Role:     role,
	})
	if err != nil {
		return oops.Code("CREATE_USER_FAILED").With("email", opts.email).Wrap(err)
	}

	cmd.Printf("Created %s %s (id %s)\n", user.Role, user.Email, user.ID)
	return nil
}

func obtainPassword(cmd *cobra.Command, opts *createUserOptions) (string, error) {
	if opts.passwordStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return "", oops.Code("PASSWORD_EMPTY").Errorf("no password on stdin: %v", err)
		}
		return line, nil
	}

	cmd.Print("Password: ")
	first, err := readPassword(opts.stdinFd)
	cmd.Println()
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	cmd.Print("Repeat password: ")
	second, err := readPassword(opts.stdinFd)
	cmd.Println()
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}

	if len(first) == 0 {
		return "", oops.Code("PASSWORD_EMPTY").Errorf("password must not be empty")
	}
	if !bytes.Equal(first, second) {
		return "", oops.Code("PASSWORD_MISMATCH").Errorf("passwords do not match")
	}
	return string(first), nil
}
