package cmd

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// s3Flags configure access to s3:// CV references.
// Flag names match the config paths.
func s3Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("s3", pflag.ExitOnError)
	fs.String("s3.region", "", "region of the bucket holding s3:// CVs")
	fs.String("s3.endpoint", "", "custom S3 endpoint, e.g. a MinIO URL")
	fs.Bool("s3.path-style", false, "use path-style bucket addressing")
	return fs
}

func bindFlagSet(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		v.BindPFlag(f.Name, f)
	})
}
