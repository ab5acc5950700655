package root

import (
	"github.com/arunavo4/turns-management-sub001/apps/cli/cmd/auth"
	"github.com/arunavo4/turns-management-sub001/apps/cli/cmd/bootstrap"
	"github.com/arunavo4/turns-management-sub001/apps/cli/cmd/thresholds"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(thresholds.Command())
}
