package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/config"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	appHTTP "github.com/cmlabs-hris/hris-payroll-engine/internal/handler/http"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/logger"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/rulebook"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/hris-payroll-engine/internal/service/payroll"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, "hris-payroll", cfg.App.Version, cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(log)

	db, err := database.NewPostgreSQLDB(context.Background(), cfg.DatabaseURL(), database.PoolConfig{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		log.Error("Error connecting to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	attendanceRepo := postgresql.NewAttendanceRepository(db)
	staffRepo := postgresql.NewStaffRepository(db)
	salaryRecordRepo := postgresql.NewSalaryRecordRepository(db)

	ruleSets, err := ruleSetSource(cfg.Payroll, db)
	if err != nil {
		log.Error("Error loading labor law rule sets", "error", err)
		os.Exit(1)
	}

	nightPolicy, err := payrollService.ParseNightPolicy(cfg.Payroll.NightPolicy)
	if err != nil {
		log.Error("Invalid night policy", "error", err)
		os.Exit(1)
	}
	engine := payrollService.NewEngine(payrollService.NewAggregator(payrollService.AggregatorConfig{
		Location:    cfg.Payroll.Location,
		WeekStart:   cfg.Payroll.WeekStart,
		NightPolicy: nightPolicy,
	}))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	payrollMetrics := metrics.New(registry)

	payrollSvc := payrollService.NewPayrollService(
		attendanceRepo,
		ruleSets,
		staffRepo,
		salaryRecordRepo,
		engine,
		payrollMetrics,
		log,
		payrollService.Config{
			Concurrency:       cfg.Payroll.BatchConcurrency,
			RequireAttendance: cfg.Payroll.RequireAttendance,
			ProtectConfirmed:  cfg.Payroll.ProtectConfirmed,
		},
	)

	jwtService := jwt.NewJWTService(cfg.JWT.Secret)
	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc)

	router := appHTTP.NewRouter(jwtService, payrollHandler, appHTTP.RouterOptions{
		Logger:         log,
		AllowedOrigins: cfg.App.AllowedOrigins,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := cron.NewScheduler(log)
	payrollJobs := cron.NewPayrollJobs(payrollSvc, cfg.Payroll.AutoRunDay, cfg.Payroll.AutoRunCompanies, cfg.Payroll.Location, log)
	payrollJobs.RegisterJobs(scheduler)
	scheduler.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server running", "addr", srv.Addr, "rule_set_source", cfg.Payroll.RuleSetSource)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	scheduler.Stop()
}

func ruleSetSource(cfg config.PayrollConfig, db *database.DB) (payroll.RuleSetSource, error) {
	if cfg.RuleSetSource == config.RuleSetSourceDatabase {
		return postgresql.NewRuleSetRepository(db), nil
	}
	book, err := rulebook.Load(cfg.RuleSetFile)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded labor law rule sets", "versions", book.Versions())
	return book, nil
}
