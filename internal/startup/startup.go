package startup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"footage-indexer/internal/logging"
	"footage-indexer/internal/resources"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	Folders                []string
	DataDir                string
	Port                   string
	MetricsPort            string
	MetricsEnabled         bool
	Mode                   resources.Mode
	ScanInterval           time.Duration
	CleanupInterval        time.Duration
	ResourceSampleInterval time.Duration
	RetentionDays          int
	SkipSTT                bool
	LogHealthChecks        bool

	// Derived paths
	CatalogPath   string
	FolderDataDir string
}

// FolderStorePath maps a watched folder path to its store file under
// the data directory. The digest keeps arbitrary absolute paths out of
// file names while staying stable across runs.
func (c *Config) FolderStorePath(folderPath string) string {
	sum := sha256.Sum256([]byte(strings.TrimRight(folderPath, "/")))
	return filepath.Join(c.FolderDataDir, hex.EncodeToString(sum[:8])+".db")
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	foldersStr := getEnv("FOLDERS", "/footage")
	dataDir := getEnv("DATA_DIR", "/data")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	modeStr := getEnv("MODE", string(resources.ModeBalanced))
	scanIntervalStr := getEnv("SCAN_INTERVAL", "5m")
	cleanupIntervalStr := getEnv("CLEANUP_INTERVAL", "12h")
	sampleIntervalStr := getEnv("RESOURCE_SAMPLE_INTERVAL", "30s")
	retentionDays := getEnvInt("ORPHAN_RETENTION_DAYS", 30)
	skipSTT := getEnvBool("SKIP_STT", false)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)

	logging.Info("  FOLDERS:                  %s", foldersStr)
	logging.Info("  DATA_DIR:                 %s", dataDir)
	logging.Info("  PORT:                     %s", port)
	logging.Info("  METRICS_PORT:             %s", metricsPort)
	logging.Info("  METRICS_ENABLED:          %v", metricsEnabled)
	logging.Info("  MODE:                     %s", modeStr)
	logging.Info("  SCAN_INTERVAL:            %s", scanIntervalStr)
	logging.Info("  CLEANUP_INTERVAL:         %s", cleanupIntervalStr)
	logging.Info("  RESOURCE_SAMPLE_INTERVAL: %s", sampleIntervalStr)
	logging.Info("  ORPHAN_RETENTION_DAYS:    %d", retentionDays)
	logging.Info("  SKIP_STT:                 %v", skipSTT)
	logging.Info("  LOG_LEVEL:                %s", logging.GetLevel())

	scanInterval := parseDurationOr(scanIntervalStr, 5*time.Minute, "SCAN_INTERVAL")
	cleanupInterval := parseDurationOr(cleanupIntervalStr, 12*time.Hour, "CLEANUP_INTERVAL")
	sampleInterval := parseDurationOr(sampleIntervalStr, 30*time.Second, "RESOURCE_SAMPLE_INTERVAL")

	var folders []string
	for _, f := range strings.Split(foldersStr, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve folder path %s: %w", f, err)
		}
		folders = append(folders, strings.TrimRight(abs, "/"))
	}
	if len(folders) == 0 {
		return nil, fmt.Errorf("no watched folders configured (set FOLDERS)")
	}

	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	config := &Config{
		Folders:                folders,
		DataDir:                dataDir,
		Port:                   port,
		MetricsPort:            metricsPort,
		MetricsEnabled:         metricsEnabled,
		Mode:                   resources.ParseMode(modeStr),
		ScanInterval:           scanInterval,
		CleanupInterval:        cleanupInterval,
		ResourceSampleInterval: sampleInterval,
		RetentionDays:          retentionDays,
		SkipSTT:                skipSTT,
		LogHealthChecks:        logHealthChecks,
		CatalogPath:            filepath.Join(dataDir, "catalog.db"),
		FolderDataDir:          filepath.Join(dataDir, "folders"),
	}

	// The data directory must exist and be writable; watched folders
	// only need to be reachable eventually (a scan copes with absence).
	if err := ensureDirectory(config.FolderDataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}
	if err := testWriteAccess(dataDir); err != nil {
		return nil, fmt.Errorf("data directory is not writable: %w", err)
	}
	logging.Info("  [OK] Data directory is writable: %s", dataDir)

	for _, f := range folders {
		if _, err := os.Stat(f); err != nil {
			logging.Warn("  Watched folder %s is not currently reachable: %v", f, err)
		} else {
			logging.Info("  [OK] Watched folder: %s", f)
		}
	}

	return config, nil
}

func parseDurationOr(s string, fallback time.Duration, name string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		logging.Warn("  Invalid %s, using default: %v", name, fallback)
		return fallback
	}
	return d
}

// LogCatalogInit logs catalog store initialization
func LogCatalogInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CATALOG INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Catalog initialized in %v", duration)
}

// LogSchedulerInit logs scheduler startup with its permit ceiling
func LogSchedulerInit(mode resources.Mode, concurrency int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SCHEDULER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Mode:        %s", mode)
	logging.Info("  Concurrency: %d", concurrency)
}

// LogScannerInit logs per-folder scanner startup
func LogScannerInit(folderPath string, interval time.Duration) {
	logging.Info("  Scanner for %s (every %v)", folderPath, interval)
}

// CheckFFprobe verifies the metadata probe binary is reachable
func CheckFFprobe() error {
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		return fmt.Errorf("ffprobe not found in PATH")
	}
	logging.Debug("  ffprobe path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "ffprobe", "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffprobe version: %w", err)
	}
	if lines := strings.Split(string(output), "\n"); len(lines) > 0 {
		logging.Debug("  ffprobe version: %s", strings.TrimSpace(lines[0]))
	}
	return nil
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
		logging.Debug("  Registered routes (%d total):", len(routes))
		for _, route := range routes {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}

	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    ____             __                         __
   / __/___  ____  / /_____ _____ ____        (_)___  ____/ /__  _  _____  _____
  / /_/ __ \/ __ \/ __/ __ '/ __ '/ _ \______/ / __ \/ __  / _ \| |/_/ _ \/ ___/
 / __/ /_/ / /_/ / /_/ /_/ / /_/ /  __/_____/ / / / / /_/ /  __/>  </  __/ /
/_/  \____/\____/\__/\__,_/\__, /\___/     /_/_/ /_/\__,_/\___/_/|_|\___/_/
                          /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
