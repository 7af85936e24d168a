package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Recognized video codecs.
const (
	CodecX265 = "libx265"
	CodecX264 = "libx264"
	CodecVP9  = "libvpx-vp9"
)

// Recognized encoder presets, slowest-to-fastest tradeoff.
var ValidPresets = map[string]bool{
	"ultrafast": true, "superfast": true, "veryfast": true,
	"faster": true, "fast": true, "medium": true,
	"slow": true, "slower": true, "veryslow": true,
}

// Default constants.
const (
	DefaultFFmpegPath  = "ffmpeg"
	DefaultFFprobePath = "ffprobe"

	DefaultVideoCodec = CodecX265
	DefaultPreset     = "medium"
	DefaultCRF        = 23

	DefaultMinFreeSpaceGB              = 5.0
	DefaultVerifyIntegrity             = true
	DefaultCreateBackupHash            = true
	DefaultMaxRetries                  = 2
	DefaultDeleteOriginalAfterCompress = true

	DefaultThresholdGB              = 10.0
	DefaultSegmentationThresholdGB  = 10.0
	DefaultDurationThresholdMinutes = 60.0
	DefaultHashChunkSizeMB          = 8
	DefaultExtendedTimeouts         = true
	DefaultUseSameFilesystem        = true

	DefaultSegmentDurationSeconds        = 600
	DefaultSegmentationTimeoutMinPerGB   = 2.0
	DefaultMinSegmentationTimeoutMinutes = 10.0
	DefaultSizeDifferenceWarningPercent  = 15.0

	DefaultParallelEnabled = true
	DefaultMaxWorkers      = 4
	DefaultMaxWorkersLimit = 16
	DefaultSegmentParallel = true

	// TempSpaceSafetyMultiplier is the fixed temp-space safety factor applied
	// to source size when computing required free space (§4.3). Not configurable.
	TempSpaceSafetyMultiplier = 2.5
)

// Config holds all configuration for a videocomp batch run.
type Config struct {
	// Filesystem locations.
	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path"`
	TempDir     string `json:"temp_dir"`
	LogDir      string `json:"log_dir"`

	// Compression.
	VideoCodec             string  `json:"video_codec"`
	Preset                 string  `json:"preset"`
	CRF                    int     `json:"crf"`
	Preserve10Bit          bool    `json:"preserve_10bit"`
	PreserveMetadata       bool    `json:"preserve_metadata"`
	TargetBitrateReduction float64 `json:"target_bitrate_reduction"`
	EnableHWAccel          bool    `json:"enable_hardware_acceleration"`

	// Safety.
	MinFreeSpaceGB                 float64 `json:"min_free_space_gb"`
	VerifyIntegrity                bool    `json:"verify_integrity"`
	CreateBackupHash               bool    `json:"create_backup_hash"`
	MaxRetries                     int     `json:"max_retries"`
	DeleteOriginalAfterCompression bool    `json:"delete_original_after_compression"`

	// Large-file routing.
	ThresholdGB              float64 `json:"threshold_gb"`
	SegmentationThresholdGB  float64 `json:"segmentation_threshold_gb"`
	DurationThresholdMinutes float64 `json:"duration_threshold_minutes"`
	HashChunkSizeMB          int     `json:"hash_chunk_size_mb"`
	ExtendedTimeouts         bool    `json:"extended_timeouts"`
	UseSameFilesystem        bool    `json:"use_same_filesystem"`

	// Segmentation.
	SegmentDurationSeconds        int     `json:"segment_duration_seconds"`
	SegmentationTimeoutMinPerGB   float64 `json:"segmentation_timeout_minutes_per_gb"`
	MinSegmentationTimeoutMinutes float64 `json:"min_segmentation_timeout_minutes"`
	SizeDifferenceWarningPercent  float64 `json:"size_difference_warning_percent"`

	// Parallel.
	ParallelEnabled bool `json:"parallel_enabled"`
	MaxWorkers      int  `json:"max_workers"`
	MaxWorkersLimit int  `json:"max_workers_limit"`
	SegmentParallel bool `json:"segment_parallel"`
}

// Default returns a Config populated with documented defaults.
func Default() *Config {
	return &Config{
		FFmpegPath:  DefaultFFmpegPath,
		FFprobePath: DefaultFFprobePath,
		TempDir:     "",
		LogDir:      "",

		VideoCodec:             DefaultVideoCodec,
		Preset:                 DefaultPreset,
		CRF:                    DefaultCRF,
		Preserve10Bit:          true,
		PreserveMetadata:       true,
		TargetBitrateReduction: 0,
		EnableHWAccel:          false,

		MinFreeSpaceGB:                 DefaultMinFreeSpaceGB,
		VerifyIntegrity:                DefaultVerifyIntegrity,
		CreateBackupHash:               DefaultCreateBackupHash,
		MaxRetries:                     DefaultMaxRetries,
		DeleteOriginalAfterCompression: DefaultDeleteOriginalAfterCompress,

		ThresholdGB:              DefaultThresholdGB,
		SegmentationThresholdGB:  DefaultSegmentationThresholdGB,
		DurationThresholdMinutes: DefaultDurationThresholdMinutes,
		HashChunkSizeMB:          DefaultHashChunkSizeMB,
		ExtendedTimeouts:         DefaultExtendedTimeouts,
		UseSameFilesystem:        DefaultUseSameFilesystem,

		SegmentDurationSeconds:        DefaultSegmentDurationSeconds,
		SegmentationTimeoutMinPerGB:   DefaultSegmentationTimeoutMinPerGB,
		MinSegmentationTimeoutMinutes: DefaultMinSegmentationTimeoutMinutes,
		SizeDifferenceWarningPercent:  DefaultSizeDifferenceWarningPercent,

		ParallelEnabled: DefaultParallelEnabled,
		MaxWorkers:      DefaultMaxWorkers,
		MaxWorkersLimit: DefaultMaxWorkersLimit,
		SegmentParallel: DefaultSegmentParallel,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.VideoCodec {
	case CodecX265, CodecX264, CodecVP9:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidCodec, c.VideoCodec)
	}

	if !ValidPresets[c.Preset] {
		return fmt.Errorf("%w: %s", ErrInvalidPreset, c.Preset)
	}

	if c.CRF < 15 || c.CRF > 35 {
		return fmt.Errorf("%w: got %d, want 15-35", ErrInvalidCRF, c.CRF)
	}

	if c.TargetBitrateReduction < 0 || c.TargetBitrateReduction > 1 {
		return fmt.Errorf("%w: target_bitrate_reduction=%g", ErrInvalidFraction, c.TargetBitrateReduction)
	}

	if c.MaxWorkers < 1 {
		return fmt.Errorf("%w: max_workers=%d", ErrInvalidWorkers, c.MaxWorkers)
	}
	if c.MaxWorkersLimit < 1 {
		return fmt.Errorf("%w: max_workers_limit=%d", ErrInvalidWorkers, c.MaxWorkersLimit)
	}

	if c.ThresholdGB <= 0 {
		return fmt.Errorf("%w: threshold_gb=%g", ErrInvalidThreshold, c.ThresholdGB)
	}
	if c.SegmentDurationSeconds <= 0 {
		return fmt.Errorf("%w: segment_duration_seconds=%d", ErrInvalidThreshold, c.SegmentDurationSeconds)
	}

	return nil
}

// DefaultPath returns the default config document location following the
// XDG Base Directory spec: $XDG_CONFIG_HOME/videocomp/config.json, falling
// back to ~/.config/videocomp/config.json.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "videocomp", "config.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "videocomp", "config.json")
	}
	return filepath.Join(home, ".config", "videocomp", "config.json")
}

// GetTempDir returns the configured temp directory, or the OS default if unset.
func (c *Config) GetTempDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return os.TempDir()
}

// NeedsSegmentation reports whether a file of the given size and duration
// must be routed through the segmentation pipeline rather than encoded whole.
// Segmentation is required iff BOTH thresholds are exceeded (§4.1).
func (c *Config) NeedsSegmentation(sizeGB, durationMinutes float64) bool {
	return sizeGB >= c.SegmentationThresholdGB && durationMinutes >= c.DurationThresholdMinutes
}

// IsLarge reports whether a file of the given size should be routed to the
// large-file pipeline (§4.8).
func (c *Config) IsLarge(sizeGB float64) bool {
	return sizeGB >= c.ThresholdGB
}

// Load reads a JSON config document from path. If the file does not exist,
// a defaulted config is written to path and returned (§6). Unknown keys are
// tolerated by encoding/json's default Unmarshal behavior; missing keys keep
// their zero value unless Load first populates defaults, which it does here.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := Save(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes cfg as an indented JSON document to path, creating parent
// directories as needed.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
