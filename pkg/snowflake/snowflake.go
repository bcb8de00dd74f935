package snowflake

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/sonyflake/v2"
	"github.com/spf13/viper"
)

var node *sonyflake.Sonyflake

// ErrNotInitialized 未调用 Init 时 NextID 返回该错误
var ErrNotInitialized = errors.New("snowflake not initialized")

// Init 根据 snowflake.start_time 与 snowflake.machine_id 初始化 ID 生成器
func Init(v *viper.Viper) error {
	st, err := time.Parse(time.DateOnly, v.GetString("snowflake.start_time"))
	if err != nil {
		return fmt.Errorf("parse start time failed, err:%w", err)
	}
	machineID := v.GetInt("snowflake.machine_id")
	settings := sonyflake.Settings{
		StartTime: st,
		MachineID: func() (int, error) {
			return machineID, nil
		},
		CheckMachineID: func(int) bool { return true },
	}
	n, err := sonyflake.New(settings)
	if err != nil {
		return fmt.Errorf("init sonyflake failed, err:%w", err)
	}
	node = n
	return nil
}

// MustInit 初始化 snowflake，失败时 panic
func MustInit(v *viper.Viper) {
	if err := Init(v); err != nil {
		panic(err)
	}
}

// NextID 生成一个运行编号
func NextID() (int64, error) {
	if node == nil {
		return 0, ErrNotInitialized
	}
	return node.NextID()
}
