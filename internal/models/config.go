package models

// ReleaseConfig contains configuration for formula generation and publication
type ReleaseConfig struct {
	// Source repository
	Owner       string `yaml:"owner"`
	Repo        string `yaml:"repo"`
	GitHubToken string `yaml:"-"`
	APIBaseURL  string `yaml:"api_base_url"` // For GitHub Enterprise or tests

	// Commit identity
	CommitAuthor string `yaml:"commit_author"` // Defaults to Owner
	CommitEmail  string `yaml:"commit_email"`

	// Formula content
	Install InstallMapping `yaml:"install"`
	Test    string         `yaml:"test"`

	// Homebrew tap
	Tap           string `yaml:"homebrew_tap"`
	FormulaFolder string `yaml:"formula_folder"`
	TapURL        string `yaml:"tap_url"` // Defaults to https://github.com/{owner}/{tap}.git
	SkipPublish   bool   `yaml:"skip_publish"`
	Force         bool   `yaml:"force"` // Publish even if the tap already has this version

	// Signing
	GPGKeyPath    string `yaml:"gpg_key"`
	GPGPassphrase string `yaml:"-"`

	// Output
	OutputDir string `yaml:"output_dir"`
	CacheDir  string `yaml:"cache_dir"`
	WriteSBOM bool   `yaml:"sbom"`
}
