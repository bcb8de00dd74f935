package conf

import (
	"fmt"
	"strings"

	"github.com/djeada/Testio/internal/constants"
	"github.com/spf13/viper"
)

// Load 加载配置文件，参数是配置文件的路径
// 路径为空时只使用默认值和环境变量（前缀 TESTIO_）
func Load(confPath string) (*viper.Viper, error) {
	conf := viper.New()
	SetDefaultValues(conf)

	conf.SetEnvPrefix(constants.EnvPrefix)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	if confPath != "" {
		conf.SetConfigFile(confPath)
		if err := conf.ReadInConfig(); err != nil { // 读取配置信息
			return nil, fmt.Errorf("读取配置文件 %s 失败: %w", confPath, err)
		}
	}

	if err := ValidateConfig(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// MustLoad 加载配置，失败时直接退出程序
func MustLoad(confPath string) *viper.Viper {
	conf, err := Load(confPath)
	if err != nil {
		panic(err)
	}
	return conf
}
