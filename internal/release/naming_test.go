package release

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/esp-release-packager/internal/manifest"
)

func TestArchiveFilename(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		projectName string
		version     string
		customLabel string
		expected    string
	}{
		{
			name:        "semantic version",
			projectName: "blink",
			version:     "v1.2.3",
			expected:    "blink_v1.2.3.zip",
		},
		{
			name:        "dirty suffix stripped",
			projectName: "blink",
			version:     "v1.2.3-dirty",
			expected:    "blink_v1.2.3.zip",
		},
		{
			name:        "version extracted from describe output",
			projectName: "blink",
			version:     "v0.0.1-12-gdeadbee-dirty",
			expected:    "blink_v0.0.1.zip",
		},
		{
			name:        "two component version",
			projectName: "blink",
			version:     "2.4",
			expected:    "blink_2.4.zip",
		},
		{
			name:        "no semantic version falls back to cleaned string",
			projectName: "blink",
			version:     "experimental-dirty",
			expected:    "blink_experimental.zip",
		},
		{
			name:        "empty version falls back to latest",
			projectName: "blink",
			version:     "",
			expected:    "blink_latest.zip",
		},
		{
			name:        "custom label wins over version",
			projectName: "blink",
			version:     "v1.2.3",
			customLabel: "field-trial",
			expected:    "blink_field-trial.zip",
		},
		{
			name:        "custom label spaces become underscores",
			projectName: "blink",
			version:     "v1.2.3",
			customLabel: "summer release candidate",
			expected:    "blink_summer_release_candidate.zip",
		},
		{
			name:        "blank custom label is ignored",
			projectName: "blink",
			version:     "v1.2.3",
			customLabel: "   ",
			expected:    "blink_v1.2.3.zip",
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			project := &manifest.ProjectDescription{
				ProjectName:    tc.projectName,
				ProjectVersion: tc.version,
			}

			require.Equal(t, tc.expected, ArchiveFilename(project, tc.customLabel))
		})
	}
}
