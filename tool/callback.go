package tool

import (
	"github.com/gin-gonic/gin"

	"github.com/moyoez/cloudsend/types"
)

func FastReturnError(msg string) gin.H {
	return gin.H{
		"error": msg,
	}
}

func FastReturnSuccess() gin.H {
	return gin.H{
		"status": "ok",
	}
}

// FastReturnRun wraps a run with its counters so clients need not walk the report.
func FastReturnRun(run types.UploadRun) gin.H {
	resp := gin.H{
		"data": run,
	}
	if run.Report != nil {
		resp["successFiles"] = len(run.Report.Successes)
		resp["failedFiles"] = len(run.Report.Failures)
	}
	return resp
}
