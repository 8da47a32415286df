package aggregate_test

import (
	"testing"

	"global-store/lib/utils"
	"global-store/modules/aggregate"

	"github.com/chebyrash/promise"
	"github.com/stretchr/testify/assert"
)

type recordingPlugin struct {
	name  string
	order *[]string
}

func (p *recordingPlugin) Init() error {
	*p.order = append(*p.order, "init "+p.name)
	return nil
}

func (p *recordingPlugin) Start() *promise.Promise[any] {
	*p.order = append(*p.order, "start "+p.name)
	return utils.PromiseResolve[any](nil)
}

func (p *recordingPlugin) Stop() error {
	*p.order = append(*p.order, "stop "+p.name)
	return nil
}

func TestRunOrder(t *testing.T) {
	var order []string
	a := aggregate.New([]aggregate.Plugin{
		&recordingPlugin{name: "a", order: &order},
		&recordingPlugin{name: "b", order: &order},
	})

	assert.NoError(t, a.Init())
	assert.Equal(t, []string{"init a", "init b"}, order)

	order = nil
	assert.NoError(t, a.Stop())
	// stop runs in reverse init order
	assert.Equal(t, []string{"stop b", "stop a"}, order)
}
