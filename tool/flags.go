package tool

import (
	"flag"
	"os"

	"github.com/moyoez/cloudsend/types"
)

// SetFlags parses CLI flags and returns the override config.
func SetFlags() types.Config {
	return parseFlags(flag.CommandLine, nil)
}

func parseFlags(fs *flag.FlagSet, args []string) types.Config {
	var cfg types.Config
	fs.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	fs.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	fs.StringVar(&cfg.UseServerURL, "useServerUrl", "", "override remote store base URL")
	fs.StringVar(&cfg.UseToken, "useToken", "", "override access token")
	fs.IntVar(&cfg.UseMaxInFlight, "useMaxInFlight", 0, "override max concurrent requests")
	fs.Int64Var(&cfg.UseChunkSize, "useChunkSize", 0, "override chunk size in bytes")
	fs.StringVar(&cfg.Upload, "upload", "", "comma separated files or folders to upload once, then exit")
	fs.StringVar(&cfg.ParentFolderID, "parentFolderId", "", "target folder id for -upload (empty = home folder)")
	fs.BoolVar(&cfg.SkipNotify, "skipNotify", false, "do not send unix socket notifications")
	fs.IntVar(&cfg.ListenPort, "listenPort", 0, "override local control API port")
	if args == nil {
		args = os.Args[1:]
	}
	_ = fs.Parse(args)
	return cfg
}
