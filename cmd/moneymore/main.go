package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/time/rate"

	"szakszon.com/moneymore"
	"szakszon.com/moneymore/cli"
	"szakszon.com/moneymore/config"
	"szakszon.com/moneymore/logger"
	"szakszon.com/moneymore/postgres"
	"szakszon.com/moneymore/tushare"
)

func main() {
	var err error
	ctx := context.Background()
	ctx, ctxCancel := context.WithCancel(ctx)

	stdoutSync := &StdoutSync{
		mu: &sync.RWMutex{},
		w:  os.Stdout,
	}
	log := logger.Default()

	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-termCh
		fmt.Println("Ctrl+C pressed")
		ctxCancel()
	}()

	optsFlagSet := flag.NewFlagSet(
		"options",
		flag.ExitOnError,
	)
	configFlag := optsFlagSet.String(
		"config",
		"moneymore.toml",
		"Config file path.",
	)
	apiBaseURLFlag := optsFlagSet.String(
		"api-base-url",
		"",
		"Data proxy API base URL, "+
			"overrides the config file.",
	)
	dbConnStrFlag := optsFlagSet.String(
		"database",
		"",
		"Database connection string, "+
			"overrides the config file.",
	)
	outputDirFlag := optsFlagSet.String(
		"output-dir",
		"",
		"Chart output directory, "+
			"overrides the config file.",
	)
	startDateFlag := optsFlagSet.String(
		"start-date",
		"-6y",
		"Start date of the period, "+
			"format 2010-06-05 or relative -6y.",
	)
	endDateFlag := optsFlagSet.String(
		"end-date",
		"",
		"End date of the period, "+
			"format 2010-06-05. "+
			"By default today.",
	)
	dateFlag := optsFlagSet.String(
		"date",
		"",
		"Date to inspect, format 2010-06-05. "+
			"By default today.",
	)
	formatFlag := optsFlagSet.String(
		"format",
		"png",
		"Chart format: png, html or html-png.",
	)
	workersFlag := optsFlagSet.Int(
		"workers",
		1,
		"Number of parallel pull workers.",
	)

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}
	optsFlagSet.Parse(os.Args[2:])

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if *apiBaseURLFlag != "" {
		cfg.API.BaseURL = *apiBaseURLFlag
	}
	if *dbConnStrFlag != "" {
		cfg.DB.ConnStr = *dbConnStrFlag
	}
	if *outputDirFlag != "" {
		cfg.Chart.OutputDir = *outputDirFlag
	}

	db, err := sql.Open("postgres", cfg.DB.ConnStr)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(50)

	pdb := &postgres.DB{
		DB: db,
	}

	startDate, err := parseDate(*startDateFlag)
	if err != nil {
		fmt.Println("invalid start date: ", *startDateFlag)
		os.Exit(1)
	}
	endDate, err := parseDate(*endDateFlag)
	if err != nil {
		fmt.Println("invalid end date: ", *endDateFlag)
		os.Exit(1)
	}
	date, err := parseDate(*dateFlag)
	if err != nil {
		fmt.Println("invalid date: ", *dateFlag)
		os.Exit(1)
	}

	ts := tushare.NewClient(
		tushare.BaseURL(cfg.API.BaseURL),
		tushare.Timeout(cfg.API.Timeout),
		tushare.RateLimiter(
			rate.NewLimiter(
				rate.Every(cfg.API.RateEvery),
				cfg.API.RateBurst,
			),
		),
		tushare.Log(log),
	)

	cmd := cli.NewCommand(
		os.Args[1],
		optsFlagSet.Args(),
		cli.DB(pdb),
		cli.Writer(stdoutSync),
		cli.OutputDir(cfg.Chart.OutputDir),
		cli.StartDate(startDate),
		cli.EndDate(endDate),
		cli.Date(date),
		cli.Format(*formatFlag),
		cli.Workers(*workersFlag),
		cli.Log(log),
		cli.PriceService(ts.NewPriceService()),
		cli.DividendService(ts.NewDividendService()),
		cli.EarningsService(ts.NewEarningsService()),
		cli.IndicatorService(ts.NewIndicatorService()),
		cli.DisclosureService(ts.NewDisclosureService()),
		cli.StockService(ts.NewStockService()),
	)
	err = cmd.Execute(ctx)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

const usage = `usage: moneymore <command> [<flags>] [<args>]

Commands:
  pull		Fetch the data feeds and cache them in the database
  chart		Create a price and dividend yield chart
  signals	Show buy and sell events
  inspect	Show the derived values of one date
  stocks	List the known stocks

See 'moneymore <command> -h' to read about a specific command.
`

var relDateRE *regexp.Regexp = regexp.MustCompile(
	"^-[0-9]+y$",
)

func parseDate(s string) (moneymore.Day, error) {
	if s == "" {
		return moneymore.Day{}, nil
	}

	if relDateRE.MatchString(s) {
		nYears, err := strconv.ParseInt(
			s[1:len(s)-1],
			10,
			64,
		)
		if err != nil {
			return moneymore.Day{}, err
		}
		return moneymore.NewDay(
			time.Now().UTC().Year()-int(nYears),
			time.January, 1,
		), nil
	}

	date, err := time.Parse(moneymore.DateFormat, s)
	if err != nil {
		d, err2 := moneymore.ParseDay(s)
		if err2 != nil {
			return moneymore.Day{}, err
		}
		return d, nil
	}
	return moneymore.DayOf(date), nil
}

type StdoutSync struct {
	mu *sync.RWMutex
	w  io.Writer
}

func (l *StdoutSync) Logf(
	format string,
	v ...interface{},
) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, v...)
	fmt.Fprintln(l.w)
}

func (l *StdoutSync) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.w.Write(p)
	if err != nil {
		return n, err
	}
	return l.w.Write([]byte{'\n'})
}
