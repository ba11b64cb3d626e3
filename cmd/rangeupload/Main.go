package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/forceu/rangeupload/cmd/rangeupload/cliapi"
	"github.com/forceu/rangeupload/cmd/rangeupload/cliconfig"
	"github.com/forceu/rangeupload/cmd/rangeupload/cliflags"
	"github.com/forceu/rangeupload/internal/environment"
	"github.com/forceu/rangeupload/internal/helper"
	"github.com/forceu/rangeupload/internal/logging"
	"github.com/forceu/rangeupload/internal/models"
	"github.com/forceu/rangeupload/internal/upload/chunkplanner"
	"github.com/forceu/rangeupload/internal/upload/registry"
	"github.com/forceu/rangeupload/internal/upload/session"
	"github.com/forceu/rangeupload/internal/upload/source"
	"github.com/forceu/rangeupload/internal/webserver/sse"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

var osExit = os.Exit

func main() {
	root := cliflags.NewRootCommand(cliflags.Actions{
		Login:   doLogin,
		Logout:  doLogout,
		Upload:  processUpload,
		Plan:    printPlan,
		Version: printVersion,
	})
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR: "+err.Error())
		osExit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, cliapi.ErrUnauthorised), errors.Is(err, cliconfig.ErrNoLogin):
		return 2
	case errors.Is(err, cliapi.ErrUploadFailed):
		return 1
	default:
		return 3
	}
}

func doLogin(configFile string) error {
	err := cliconfig.CreateLogin(configFile)
	if errors.Is(err, cliapi.ErrUnauthorised) {
		return fmt.Errorf("credential was rejected by the server: %w", err)
	}
	return err
}

func doLogout(configFile string) error {
	err := cliconfig.Delete(configFile)
	if err != nil {
		return fmt.Errorf("could not delete configuration file: %w", err)
	}
	fmt.Println("Logged out. To login again, run: rangeupload login")
	return nil
}

func printVersion() {
	fmt.Println("rangeupload " + environment.VersionString())
}

func processUpload(params cliflags.UploadConfig) error {
	config, err := cliconfig.Load(params.ConfigFile)
	if err != nil {
		if errors.Is(err, cliconfig.ErrNoLogin) {
			return fmt.Errorf("%w, please run 'rangeupload login' first", err)
		}
		return err
	}
	env := environment.New()
	if params.ChunkSize > 0 {
		env.ChunkSize = params.ChunkSize
	}
	if params.MaxRetries >= 0 {
		env.MaxRetries = params.MaxRetries
	}
	description := config.Description
	if params.Description != "" {
		description = params.Description
	}
	if env.LogToStdout && !params.JsonOutput {
		logging.InitStdout(logrus.DebugLevel)
	}

	files, closeFiles, err := openFiles(params.Files)
	if err != nil {
		return err
	}
	defer closeFiles()

	var sinks session.MultiSink
	var bar *progressSink
	if !params.JsonOutput {
		bar = newProgressSink(files, os.Stderr)
		sinks = append(sinks, bar)
	}
	var reg *registry.Registry
	var broadcaster *sse.Broadcaster
	if params.StatusAddr != "" {
		broadcaster = sse.New(func() []models.SessionInfo { return reg.List() })
		sinks = append(sinks, broadcaster)
	}
	reg = cliapi.NewRegistry(config.Url, env, sinks)
	added := reg.Add(files...)
	if added.Duplicates > 0 && !params.JsonOutput {
		fmt.Printf("Skipped %d duplicate file(s)\n", added.Duplicates)
	}
	if broadcaster != nil {
		stop, err := serveStatus(params.StatusAddr, broadcaster)
		if err != nil {
			return err
		}
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	infos, err := cliapi.Run(ctx, reg, config.Credential, description)
	if bar != nil {
		bar.Finish()
	}
	if params.JsonOutput {
		printJson(os.Stdout, infos)
	} else {
		printSummary(os.Stdout, infos)
	}
	return err
}

func openFiles(paths []string) ([]models.UploadFile, func(), error) {
	var files []models.UploadFile
	var closers []io.Closer
	closeAll := func() {
		for _, closer := range closers {
			_ = closer.Close()
		}
	}
	for _, path := range paths {
		file, closer, err := source.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, file)
		closers = append(closers, closer)
	}
	return files, closeAll, nil
}

func serveStatus(addr string, broadcaster *sse.Broadcaster) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/statusUpdate", broadcaster.GetStatusSSE)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		_ = srv.Serve(listener)
	}()
	return func() {
		broadcaster.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printJson(w io.Writer, infos []models.SessionInfo) {
	jsonStr, _ := json.Marshal(infos)
	fmt.Fprintln(w, string(jsonStr))
}

func printSummary(w io.Writer, infos []models.SessionInfo) {
	for _, info := range infos {
		switch info.Status {
		case models.StatusCompleted:
			fmt.Fprintf(w, "Upload successful: %s (%s)\n", info.FileName, helper.ByteCount(info.TotalSize))
			var response models.FileServiceResponse
			if info.Result != nil && info.Result.Decode(&response) == nil {
				for _, file := range response.Files {
					fmt.Fprintln(w, "Stored as: "+file.Path)
				}
			}
		case models.StatusFailed:
			fmt.Fprintf(w, "Upload failed: %s (%s)\n", info.FileName, info.Error)
		default:
			fmt.Fprintf(w, "Upload %s: %s %s\n", info.Status, info.FileName, helper.ProgressString(info))
		}
	}
}

type planOutput struct {
	File   string             `json:"file"`
	Size   int64              `json:"size"`
	Ranges []models.ByteRange `json:"ranges"`
}

func printPlan(params cliflags.PlanConfig) error {
	env := environment.New()
	if params.ChunkSize > 0 {
		env.ChunkSize = params.ChunkSize
	}
	files, closeFiles, err := openFiles(params.Files)
	if err != nil {
		return err
	}
	defer closeFiles()

	var output []planOutput
	for _, file := range files {
		output = append(output, planOutput{
			File:   file.Name,
			Size:   file.Size,
			Ranges: chunkplanner.Ranges(file.Size, env.ChunkSize),
		})
	}
	if params.JsonOutput {
		jsonStr, _ := json.Marshal(output)
		fmt.Println(string(jsonStr))
		return nil
	}
	for _, plan := range output {
		fmt.Printf("%s (%s), %d request(s):\n", plan.File, helper.ByteCount(plan.Size), len(plan.Ranges)+1)
		for _, byteRange := range plan.Ranges {
			fmt.Println("  Content-Range: " + byteRange.ContentRange(plan.Size))
		}
		fmt.Println("  Content-Range: " + models.ByteRange{Start: plan.Size, End: plan.Size - 1}.ContentRange(plan.Size))
	}
	return nil
}

// progressSink shows the combined progress of all sessions
type progressSink struct {
	mutex   sync.Mutex
	bar     *progressbar.ProgressBar
	offsets map[string]int64
}

func newProgressSink(files []models.UploadFile, w io.Writer) *progressSink {
	var total int64
	for _, file := range files {
		total += file.Size
	}
	return &progressSink{
		bar: progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Uploading..."),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		),
		offsets: make(map[string]int64),
	}
}

// Notify updates the bar with the offset of the session
func (p *progressSink) Notify(event models.SessionEvent) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	info := event.Session
	p.offsets[info.Id] = info.Offset
	var sum int64
	for _, offset := range p.offsets {
		sum += offset
	}
	switch event.Type {
	case models.EventRetry:
		p.bar.Describe(fmt.Sprintf("%s: retrying %d/%d", info.FileName, info.RetryCount, info.MaxRetries))
	case models.EventFailed:
		p.bar.Describe(info.FileName + ": failed")
	default:
		p.bar.Describe(info.FileName + " " + helper.SpeedString(info))
	}
	_ = p.bar.Set64(sum)
}

// Finish completes the bar
func (p *progressSink) Finish() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	_ = p.bar.Finish()
}
