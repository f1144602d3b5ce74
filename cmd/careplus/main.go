package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/careplus/careplus-go/internal/config"
	"github.com/careplus/careplus-go/internal/domain/registration"
	"github.com/careplus/careplus-go/internal/domain/verification"
	"github.com/careplus/careplus-go/internal/platform/backend"
	"github.com/careplus/careplus-go/internal/platform/staging"
	"github.com/careplus/careplus-go/internal/platform/stubserver"
	"github.com/careplus/careplus-go/internal/wizard"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "careplus",
		Short: "Care Plus registration wizard",
	}

	rootCmd.AddCommand(wizardCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(stubServerCmd())
	rootCmd.AddCommand(stagingCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func loadConfig(logger zerolog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	return cfg
}

func wizardCmd() *cobra.Command {
	var autoConfirmAfter time.Duration

	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Run the interactive registration wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg := loadConfig(logger)

			store, err := staging.NewFileStore(cfg.StagingPath)
			if err != nil {
				return err
			}
			client := backend.New(cfg.ResolvedBaseURL(), store, logger,
				backend.WithTimeout(cfg.HTTPTimeout()))
			session := wizard.NewDefaultSession(client, store, logger,
				registration.WithOfflineFallback(cfg.AllowOfflineFinalize))

			return runWizard(cmd.Context(), session, autoConfirmAfter)
		},
	}

	cmd.Flags().DurationVar(&autoConfirmAfter, "auto-confirm-after", 0,
		"auto-confirm the verification gate after this delay instead of waiting for input (development only)")
	return cmd
}

func runWizard(ctx context.Context, session *wizard.Session, autoConfirmAfter time.Duration) error {
	in := bufio.NewScanner(os.Stdin)
	prompt := func(label string) string {
		fmt.Printf("%s: ", label)
		if !in.Scan() {
			return ""
		}
		return strings.TrimSpace(in.Text())
	}

	if err := session.Resume(); err != nil {
		return err
	}
	if session.Step() != wizard.StepRegister {
		fmt.Printf("이전 진행 상태에서 이어서 시작합니다 (%s).\n", session.Step())
	}

	for session.Step() != wizard.StepDone {
		var err error
		switch session.Step() {
		case wizard.StepRegister:
			err = session.StartRegistration(prompt("아이디"), prompt("비밀번호"))

		case wizard.StepIdentity:
			fmt.Println("인증 수단:")
			for _, p := range verification.Providers {
				fmt.Printf("  %-8s %s\n", p.ID, p.DisplayName)
			}
			id := verification.Identity{
				Name:        prompt("이름"),
				BirthDate:   prompt("생년월일 (YYMMDD)"),
				PhoneNumber: prompt("휴대폰 번호"),
			}
			err = session.SubmitIdentity(ctx, id, prompt("인증 수단 선택"))

		case wizard.StepGate:
			if autoConfirmAfter > 0 {
				fmt.Printf("%s 후 자동으로 진행합니다...\n", autoConfirmAfter)
				session.Gate().AutoConfirmAfter(autoConfirmAfter)
			} else {
				prompt("앱에서 인증을 완료한 뒤 Enter를 눌러주세요")
				session.ConfirmVerification()
			}
			err = session.AwaitGate(ctx)

		case wizard.StepHealthFetch:
			fmt.Println("건강정보를 불러오는 중...")
			err = session.FetchHealth(ctx)
			if err == nil {
				printProfile(session)
			}

		case wizard.StepCheckupSelect:
			for i, c := range session.Candidates() {
				fmt.Printf("  [%d] %s %s\n", i, c.Date, c.HospitalName)
			}
			idx, convErr := strconv.Atoi(prompt("검진일 선택"))
			if convErr != nil {
				idx = -1
			}
			err = session.SelectCheckup(idx)

		case wizard.StepDiseaseReview:
			analysis, reviewErr := session.ReviewDiseases(ctx)
			err = reviewErr
			if err == nil {
				fmt.Printf("질환 분석 (%s, 위험도 %s):\n", analysis.Status, analysis.RiskLevel)
				for _, d := range analysis.Diseases {
					fmt.Printf("  - %s (%s) %s\n", d.Name, d.Severity, d.Detail)
				}
			}

		case wizard.StepFinalize:
			result, finErr := session.Finalize(ctx)
			err = finErr
			if err == nil {
				fmt.Printf("가입 완료: %s\n", result.User.UserID)
			}
		}

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Printf("오류: %s\n", session.LastError())
			if prompt("다시 시도하시겠습니까? (y/n)") != "y" {
				return err
			}
		}
	}
	return nil
}

func printProfile(session *wizard.Session) {
	p := session.Profile()
	fmt.Printf("신장 기능: %d단계 (%s)\n", p.KidneyFunction.CKDStage, p.KidneyFunction.StageDescription)
	if p.Dialysis {
		fmt.Println("투석 이력이 확인되었습니다.")
	}
	for _, c := range p.MedicalHistory {
		fmt.Printf("추정 질환: %s (%s)\n", c.Name, strings.Join(c.SourceMedications, ", "))
	}
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [phone-number]",
		Short: "Log in with a registered phone number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg := loadConfig(logger)

			store, err := staging.NewFileStore(cfg.StagingPath)
			if err != nil {
				return err
			}
			client := backend.New(cfg.ResolvedBaseURL(), store, logger,
				backend.WithTimeout(cfg.HTTPTimeout()))

			res, err := client.Login(cmd.Context(), verification.DigitsOnly(args[0]))
			if err != nil {
				return err
			}
			if err := store.Put(staging.KeyAuthToken, res.Token); err != nil {
				return err
			}
			if err := store.Put(staging.KeyUserData, res.User); err != nil {
				return err
			}
			if err := store.Put(staging.KeyIsLoggedIn, "true"); err != nil {
				return err
			}
			fmt.Printf("로그인 완료: %s\n", res.User.UserID)
			return nil
		},
	}
}

func stubServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stub-server",
		Short: "Run the development stub backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg := loadConfig(logger)
			if cfg.IsProduction() {
				return fmt.Errorf("the stub backend must not run in production")
			}

			srv := stubserver.New(cfg.StubJWTSecret, logger)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(":" + cfg.StubPort) }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case <-quit:
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}

func stagingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staging",
		Short: "Inspect or clear the local staging store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the staged wizard state",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg := loadConfig(logger)
			data, err := os.ReadFile(cfg.StagingPath)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("{}")
					return nil
				}
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Purge all staged wizard state",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg := loadConfig(logger)
			store, err := staging.NewFileStore(cfg.StagingPath)
			if err != nil {
				return err
			}
			if err := store.ClearWizard(); err != nil {
				return err
			}
			fmt.Println("staging cleared")
			return nil
		},
	})

	return cmd
}
