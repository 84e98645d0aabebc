package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"asynccalc/internal/auth"
	"asynccalc/internal/calculator"
	"asynccalc/internal/config"
	internalgrpc "asynccalc/internal/grpc"
	"asynccalc/internal/models"
	"asynccalc/internal/types"
)

func main() {
	config.LoadEnvFiles(config.DefaultEnvFiles...)
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage()
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: calcctl <command> [flags] [args]

Commands:
  token     Mint a bearer token for a user
  eval      Evaluate an expression locally
  submit    Submit an expression to the orchestrator
  get       Show a calculation
  list      List your calculations
  cancel    Cancel a calculation

Remote commands read CALC_ADDR and CALC_TOKEN unless -addr and -token are given.`)
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	switch args[0] {
	case "token":
		return cmdToken(args[1:], out)
	case "eval":
		return cmdEval(args[1:], out)
	case "submit", "get", "list", "cancel":
		return cmdRemote(args[0], args[1:], out)
	default:
		return errUsage
	}
}

func cmdToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("JWT_SECRET"), "signing secret (default $JWT_SECRET)")
	userID := fs.Int("user-id", 0, "user id")
	login := fs.String("login", "", "user login")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *secret == "" {
		return errors.New("a signing secret is required")
	}
	if *userID <= 0 || *login == "" {
		return errors.New("-user-id and -login are required")
	}

	token, err := auth.NewTokens(*secret, *ttl).GenerateToken(models.User{ID: *userID, Login: *login})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func cmdEval(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	validation := fs.String("validation", "strict", "number validation: strict or lenient")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("an expression is required")
	}
	mode, err := calculator.ParseNumberValidation(*validation)
	if err != nil {
		return err
	}

	expression := strings.Join(fs.Args(), " ")
	value, details := calculator.NewCalculator().Evaluate(context.Background(), expression, mode)
	if details != nil {
		return fmt.Errorf("%s", describe(expression, details))
	}
	fmt.Fprintln(out, strconv.FormatFloat(value, 'g', -1, 64))
	return nil
}

// describe renders error details with a caret under the failing span.
func describe(expression string, d *models.CalculationErrorDetails) string {
	if d.Offset == nil {
		return d.ErrorCode
	}
	width := 1
	if d.Length != nil && *d.Length > 1 {
		width = *d.Length
	}
	return fmt.Sprintf("%s at offset %d\n  %s\n  %s%s",
		d.ErrorCode, *d.Offset, expression, strings.Repeat(" ", *d.Offset), strings.Repeat("^", width))
}

func cmdRemote(name string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	addr := fs.String("addr", envOr("CALC_ADDR", "localhost:8081"), "orchestrator gRPC address")
	token := fs.String("token", os.Getenv("CALC_TOKEN"), "bearer token")
	timeout := fs.Duration("timeout", 10*time.Second, "call timeout")
	wait := fs.Bool("wait", false, "submit: poll until the calculation finishes")
	status := fs.String("status", "", "list: comma separated statuses")
	limit := fs.Int("limit", 0, "list: page size")
	offset := fs.Int("offset", 0, "list: page offset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return errors.New("a token is required; see 'calcctl token'")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client, err := internalgrpc.NewCalculatorClient(ctx, *addr, *token)
	if err != nil {
		return err
	}
	defer client.Close()

	var result any
	switch name {
	case "submit":
		if fs.NArg() == 0 {
			return errors.New("an expression is required")
		}
		calc, err := client.Create(ctx, strings.Join(fs.Args(), " "))
		if err != nil {
			return err
		}
		if *wait {
			calc, err = await(ctx, client, calc.ID)
			if err != nil {
				return err
			}
		}
		result = calc
	case "get":
		if fs.NArg() != 1 {
			return errors.New("exactly one calculation id is required")
		}
		if result, err = client.Get(ctx, fs.Arg(0)); err != nil {
			return err
		}
	case "list":
		req := &types.ListRequest{Limit: *limit, Offset: *offset}
		if *status != "" {
			req.Statuses = strings.Split(*status, ",")
		}
		if result, err = client.List(ctx, req); err != nil {
			return err
		}
	case "cancel":
		if fs.NArg() != 1 {
			return errors.New("exactly one calculation id is required")
		}
		if result, err = client.Cancel(ctx, fs.Arg(0)); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func await(ctx context.Context, client *internalgrpc.CalculatorClient, id string) (*types.Calculation, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		calc, err := client.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if state, ok := models.ParseState(calc.Status); ok && state.IsTerminal() {
			return calc, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
