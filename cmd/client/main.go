// Command client drives the on-device account module from a terminal:
// register, log in, spin, withdraw and inspect the local ledger.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"patapesa/internal/account"
	"patapesa/internal/config"
	"patapesa/internal/model"
	"patapesa/internal/remote"
	"patapesa/internal/rewards"
	"patapesa/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = `usage: client [-fallback any|unavailable|never] [-v] <command> [args]

commands:
  register -username U -phone P -password X [-referral CODE]
  login -username U -password X [-remember]
  logout [-forget]
  whoami
  spin
  set-points -points N
  withdraw -amount N [-fee N]
  activate [-confirm]
  referrals
  reset-password -username U -current X -new Y
  ledger
  users
  onboarding [-done]
  health
  refresh
`

func main() {
	_ = godotenv.Load()

	fallback := flag.String("fallback", "any", "when to fall back to local data: any, unavailable or never")
	verbose := flag.Bool("v", false, "log to stderr")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		logger = l
	}
	defer logger.Sync()

	svc, closeFn, err := newService(logger, *fallback)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, svc, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newService(logger *zap.Logger, fallback string) (*account.Service, func(), error) {
	policy, err := parseFallback(fallback)
	if err != nil {
		return nil, nil, err
	}

	var kv store.Store
	closeFn := func() {}
	if addrs := config.SplitAddrs(os.Getenv("REDIS_ADDR")); len(addrs) > 0 {
		rs := store.NewRedisStore(addrs, os.Getenv("REDIS_PASSWORD"), "patapesa")
		kv = rs
		closeFn = func() { _ = rs.Close() }
	} else {
		path := os.Getenv("PATAPESA_STORE_PATH")
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, nil, err
			}
			path = filepath.Join(home, ".patapesa", "store.json")
		}
		fs, err := store.NewFileStore(path)
		if err != nil {
			return nil, nil, err
		}
		kv = fs
	}

	opts := []account.Option{account.WithLogger(logger), account.WithFallback(policy)}
	if baseURL := os.Getenv("PATAPESA_BACKEND_URL"); baseURL != "" {
		var timeout time.Duration
		if raw := os.Getenv("PATAPESA_REMOTE_TIMEOUT"); raw != "" {
			if timeout, err = time.ParseDuration(raw); err != nil {
				return nil, nil, fmt.Errorf("invalid PATAPESA_REMOTE_TIMEOUT: %w", err)
			}
		}
		opts = append(opts, account.WithMirror(remote.NewClient(baseURL, timeout, logger)))
	}
	return account.NewService(kv, opts...), closeFn, nil
}

func parseFallback(s string) (account.FallbackPolicy, error) {
	switch strings.ToLower(s) {
	case "any":
		return account.FallbackAny, nil
	case "unavailable":
		return account.FallbackUnavailable, nil
	case "never":
		return account.FallbackNever, nil
	}
	return 0, fmt.Errorf("unknown fallback policy %q", s)
}

func run(ctx context.Context, svc *account.Service, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)

	switch cmd {
	case "register":
		username := fs.String("username", "", "username")
		phone := fs.String("phone", "", "phone number, 07.. or +254..")
		password := fs.String("password", "", "password")
		referral := fs.String("referral", "", "referral code of an existing user")
		if err := fs.Parse(args); err != nil {
			return err
		}
		user, err := svc.Register(ctx, model.RegisterRequest{
			Username:     *username,
			PhoneNumber:  *phone,
			Password:     *password,
			ReferralCode: *referral,
		})
		if err != nil {
			return err
		}
		return printJSON(user)

	case "login":
		username := fs.String("username", "", "username")
		password := fs.String("password", "", "password")
		remember := fs.Bool("remember", false, "keep the credentials on this device")
		if err := fs.Parse(args); err != nil {
			return err
		}
		user, err := svc.Login(ctx, *username, *password, *remember)
		if err != nil {
			return err
		}
		return printJSON(user)

	case "logout":
		forget := fs.Bool("forget", false, "also clear remembered credentials")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return svc.Logout(ctx, *forget)

	case "whoami":
		sess, err := svc.CurrentSession(ctx)
		if err != nil {
			return err
		}
		return printJSON(sess)

	case "spin":
		sess, err := svc.CurrentSession(ctx)
		if err != nil {
			return err
		}
		prize := rewards.Spin(rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)))
		var user *model.User
		if sess.HasUsedFreeSpin {
			user, err = svc.ApplyWin(ctx, sess.ID, prize.Points)
		} else {
			user, err = svc.ApplySpinResult(ctx, sess.ID, prize.Points)
		}
		if err != nil {
			return err
		}
		fmt.Printf("landed on %s\n", prize.Label)
		return printJSON(user)

	case "set-points":
		points := fs.Int64("points", 0, "new balance")
		if err := fs.Parse(args); err != nil {
			return err
		}
		sess, err := svc.CurrentSession(ctx)
		if err != nil {
			return err
		}
		return svc.UpdatePoints(ctx, sess.ID, *points)

	case "withdraw":
		amount := fs.Int64("amount", 0, "amount in KES")
		fee := fs.Int64("fee", rewards.WithdrawalFee, "processing fee in KES")
		if err := fs.Parse(args); err != nil {
			return err
		}
		sess, err := svc.CurrentSession(ctx)
		if err != nil {
			return err
		}
		receipt, err := svc.Withdraw(ctx, sess.ID, *amount, *fee)
		if err != nil {
			return err
		}
		return printJSON(receipt)

	case "activate":
		confirm := fs.Bool("confirm", false, "complete the activation instead of submitting the payment")
		if err := fs.Parse(args); err != nil {
			return err
		}
		sess, err := svc.CurrentSession(ctx)
		if err != nil {
			return err
		}
		if *confirm {
			return svc.Activate(ctx, sess.ID)
		}
		if !rewards.CanActivate(&sess.User) {
			return fmt.Errorf("activation needs at least %d points", rewards.ActivationThreshold)
		}
		fmt.Printf("activation fee: KES %d\n", rewards.ActivationFee(sess.Points))
		return svc.SetActivationPending(ctx, sess.ID)

	case "referrals":
		sess, err := svc.CurrentSession(ctx)
		if err != nil {
			return err
		}
		stats, err := svc.ReferralStats(ctx, sess.ID)
		if err != nil {
			return err
		}
		fmt.Printf("your code: %s\n", sess.ReferralCode)
		return printJSON(stats)

	case "reset-password":
		username := fs.String("username", "", "username")
		current := fs.String("current", "", "current password")
		next := fs.String("new", "", "new password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return svc.ResetPassword(ctx, *username, *current, *next)

	case "ledger":
		sess, err := svc.CurrentSession(ctx)
		if err != nil {
			return err
		}
		entries, err := svc.Ledger(ctx, sess.ID)
		if err != nil {
			return err
		}
		return printJSON(entries)

	case "health":
		h, err := svc.CheckHealth(ctx)
		if perr := printJSON(h); perr != nil {
			return perr
		}
		return err

	case "refresh":
		sess, err := svc.CurrentSession(ctx)
		if err != nil {
			return err
		}
		user, err := svc.RefreshProfile(ctx, sess.ID)
		if err != nil {
			return err
		}
		return printJSON(user)

	case "users":
		users, err := svc.Users(ctx)
		if err != nil {
			return err
		}
		return printJSON(users)

	case "onboarding":
		done := fs.Bool("done", false, "mark onboarding as completed")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *done {
			return svc.SetOnboardingCompleted(ctx)
		}
		completed, err := svc.HasCompletedOnboarding(ctx)
		if err != nil {
			return err
		}
		fmt.Println(completed)
		return nil
	}
	return errors.New("unknown command " + cmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
