package cliconstants

// DefaultConfigFileName is the default config file name
const DefaultConfigFileName = "rangeupload-cli.yml"

// DockerFolderConfig is the default config folder for an docker instance
const DockerFolderConfig = "/app/config/"

// DockerFolderConfigFile is the default config path for a docker instance
const DockerFolderConfigFile = DockerFolderConfig + DefaultConfigFileName

// DockerFolderUpload is the default upload folder for a docker instance
const DockerFolderUpload = "/upload/"
