package models

// AwsConfig contains the credentials for storing finished uploads in an S3 bucket
type AwsConfig struct {
	Bucket    string `yaml:"Bucket"`
	Region    string `yaml:"Region"`
	Endpoint  string `yaml:"Endpoint"`
	KeyId     string `yaml:"KeyId"`
	KeySecret string `yaml:"KeySecret"`
	// KeyPrefix is prepended to every object key
	KeyPrefix string `yaml:"KeyPrefix"`
}

// IsAllProvided returns true if bucket, region and credentials are set
func (c *AwsConfig) IsAllProvided() bool {
	return c.Bucket != "" &&
		c.Region != "" &&
		c.KeyId != "" &&
		c.KeySecret != ""
}
