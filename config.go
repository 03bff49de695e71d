package trackdlo

import (
	"fmt"
	"math"
	"os"

	"github.com/zhao-harry/trackdlo/camera"
	"github.com/zhao-harry/trackdlo/registration"

	"github.com/spf13/viper"
)

// Config holds every tunable enumerated in the registration and
// pre-processing contracts, with the defaults the tracker uses at
// initialisation and during tracking (spec §4.4, §6).
type Config struct {
	// Init holds the EM hyper-parameters used for the first-frame fit.
	Init StageConfig
	// Track holds the EM hyper-parameters used on every subsequent frame.
	Track StageConfig
	// GuidePass holds the coarse EM hyper-parameters pre-processing uses
	// to obtain guide nodes (spec §4.2).
	GuidePass StageConfig

	// MaskDistanceThreshold is the pixel distance below which a projected
	// guide node is considered consistent with the observed mask.
	MaskDistanceThreshold float64
	// EndVisibilityThreshold is the displacement (metres) below which a
	// guide-node endpoint is classified visible.
	EndVisibilityThreshold float64
	// LengthTolerance is the arc-length difference (metres) below which
	// pre-processing treats the chain as fully visible.
	LengthTolerance float64
	// SplineSampleSpacing is the resampling resolution (metres) used when
	// fitting the cubic spline over a visible segment.
	SplineSampleSpacing float64

	// OppositeSideGuard is the distance guard (metres) used by marker
	// ordering's opposite-closest search.
	OppositeSideGuard float64
	// ReverseChainThreshold is the distance (metres) below which the
	// previous-frame head anchor causes the marker chain to be reversed.
	ReverseChainThreshold float64

	// Intrinsics is the fixed camera projection used to project nodes
	// into pixel space for visibility classification and overlay
	// rendering.
	Intrinsics camera.Intrinsics
	// ImageWidth and ImageHeight bound the projected pixel coordinates.
	ImageWidth, ImageHeight int
}

// StageConfig is the set of EM hyper-parameters for one registration call.
type StageConfig struct {
	Beta, Alpha, Gamma, Mu float64
	IterMax                int
	Tol                    float64
	Omega                  float64
	Kernel                 registration.Kernel
}

func (c Config) String() string {
	return fmt.Sprintf("[trackdlo:config] init(beta=%.3f) track(beta=%.3f) mask_dis=%.1fpx",
		c.Init.Beta, c.Track.Beta, c.MaskDistanceThreshold)
}

// DefaultConfig returns the hyper-parameters named explicitly by spec §4.4
// and §6: β=0.5/7 for init/track, α=γ=1, μ=0.1, ω=1e-3, 30 iterations, and
// the occlusion/marker-ordering thresholds.
func DefaultConfig() Config {
	return Config{
		Init: StageConfig{
			Beta: 0.5, Alpha: 1, Gamma: 1, Mu: 0.1,
			IterMax: 30, Tol: 1e-5, Omega: 1e-3,
			Kernel: registration.Gaussian,
		},
		Track: StageConfig{
			Beta: 7, Alpha: 1, Gamma: 1, Mu: 0.1,
			IterMax: 30, Tol: 1e-5, Omega: 1e-3,
			Kernel: registration.FirstOrder,
		},
		GuidePass: StageConfig{
			Beta: 10, Alpha: 1, Gamma: 1, Mu: 0.2,
			IterMax: 30, Tol: 1e-5,
			Kernel: registration.Laplacian,
		},
		MaskDistanceThreshold:  10,
		EndVisibilityThreshold: 0.007,
		LengthTolerance:        0.007,
		SplineSampleSpacing:    0.001,
		OppositeSideGuard:      0.07,
		ReverseChainThreshold:  0.05,
		ImageWidth:             1280,
		ImageHeight:            720,
		Intrinsics: camera.Intrinsics{
			Fx: 918.359130859375, Fy: 916.265869140625,
			Cx: 645.8908081054688, Cy: 354.02392578125,
		},
	}
}

// LoadConfig reads overrides from a YAML/TOML/JSON file (any format viper
// recognises by extension) layered on top of DefaultConfig. A missing file
// is not an error: defaults are used as-is.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("trackdlo: reading config %s: %w", path, err)
	}

	if v.IsSet("init.beta") {
		cfg.Init.Beta = v.GetFloat64("init.beta")
	}
	if v.IsSet("track.beta") {
		cfg.Track.Beta = v.GetFloat64("track.beta")
	}
	if v.IsSet("mask_dis_threshold") {
		cfg.MaskDistanceThreshold = v.GetFloat64("mask_dis_threshold")
	}
	if v.IsSet("end_visibility_threshold") {
		cfg.EndVisibilityThreshold = v.GetFloat64("end_visibility_threshold")
	}
	if v.IsSet("opposite_side_guard") {
		cfg.OppositeSideGuard = v.GetFloat64("opposite_side_guard")
	}
	if v.IsSet("reverse_chain_threshold") {
		cfg.ReverseChainThreshold = v.GetFloat64("reverse_chain_threshold")
	}
	if v.IsSet("camera.fx") {
		cfg.Intrinsics.Fx = v.GetFloat64("camera.fx")
	}
	if v.IsSet("camera.fy") {
		cfg.Intrinsics.Fy = v.GetFloat64("camera.fy")
	}
	if v.IsSet("camera.cx") {
		cfg.Intrinsics.Cx = v.GetFloat64("camera.cx")
	}
	if v.IsSet("camera.cy") {
		cfg.Intrinsics.Cy = v.GetFloat64("camera.cy")
	}
	if v.IsSet("image.width") {
		cfg.ImageWidth = v.GetInt("image.width")
	}
	if v.IsSet("image.height") {
		cfg.ImageHeight = v.GetInt("image.height")
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Init.Mu <= 0 || c.Init.Mu >= 1 {
		return fmt.Errorf("trackdlo: init.mu must be in (0,1), got %f", c.Init.Mu)
	}
	if c.Track.Mu <= 0 || c.Track.Mu >= 1 {
		return fmt.Errorf("trackdlo: track.mu must be in (0,1), got %f", c.Track.Mu)
	}
	if c.Init.Omega < 1e-6 || c.Track.Omega < 1e-6 {
		return fmt.Errorf("trackdlo: omega floor is 1e-6")
	}
	if math.IsNaN(c.MaskDistanceThreshold) || c.MaskDistanceThreshold <= 0 {
		return fmt.Errorf("trackdlo: mask_dis_threshold must be positive")
	}
	return nil
}
