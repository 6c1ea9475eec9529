// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import "fmt"

// PluginAPIVersion is the version of the plugin interface implemented by the pass builder
const PluginAPIVersion = 1

// PluginInfo describes a plugin: its name, its version and the function registering its callbacks in a pass
// builder.
type PluginInfo struct {
	APIVersion        int
	Name              string
	Version           string
	RegisterCallbacks func(pb *PassBuilder)
}

// LoadPlugin registers the callbacks of the plugin in the pass builder. It returns an error if the plugin was
// built for another version of the plugin interface.
func (pb *PassBuilder) LoadPlugin(info PluginInfo) error {
	if info.APIVersion != PluginAPIVersion {
		return fmt.Errorf("plugin %s %s: API version %d, expected %d", info.Name, info.Version, info.APIVersion,
			PluginAPIVersion)
	}
	if info.RegisterCallbacks == nil {
		return fmt.Errorf("plugin %s %s does not register any callback", info.Name, info.Version)
	}
	for _, p := range pb.plugins {
		if p.Name == info.Name {
			return fmt.Errorf("plugin %s is already loaded", info.Name)
		}
	}
	info.RegisterCallbacks(pb)
	pb.plugins = append(pb.plugins, info)
	pb.logger.Debugf("loaded plugin %s %s", info.Name, info.Version)
	return nil
}

// Plugins returns the loaded plugins
func (pb *PassBuilder) Plugins() []PluginInfo {
	return pb.plugins
}
