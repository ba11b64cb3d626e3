package environment

/**
Variables that are set during build with -ldflags "-X ..."
*/

// Version of rangeupload (auto-generated value)
var Version = "dev"

// IsDocker has to be true if compiled for the Docker image (auto-generated value)
var IsDocker = "false"

// BuildTime is the time of the build (auto-generated value)
var BuildTime = "Dev Build"

// IsDockerInstance returns true if the binary was compiled for the docker image
func IsDockerInstance() bool {
	return IsDocker != "false"
}

// VersionString returns the version together with the build time
func VersionString() string {
	return Version + " (" + BuildTime + ")"
}
