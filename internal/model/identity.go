// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "hash/fnv"

// colorNames and animalNames together span the 18x73 = 1,314 identity
// space used to derive a stable, human-friendly label for a player id.
var colorNames = []string{
	"crimson", "amber", "gold", "lime", "emerald", "teal", "cyan", "azure",
	"cobalt", "indigo", "violet", "magenta", "rose", "coral", "bronze",
	"slate", "charcoal", "silver",
}

var animalNames = []string{
	"otter", "fox", "wolf", "hawk", "owl", "raven", "crow", "heron",
	"egret", "stork", "crane", "swan", "goose", "duck", "finch", "sparrow",
	"robin", "wren", "lark", "swallow", "falcon", "eagle", "kite", "kestrel",
	"badger", "weasel", "stoat", "ferret", "mink", "marten", "beaver",
	"muskrat", "vole", "shrew", "mole", "hedgehog", "porcupine", "squirrel",
	"chipmunk", "marmot", "groundhog", "rabbit", "hare", "pika", "deer",
	"elk", "moose", "caribou", "bison", "boar", "lynx", "bobcat", "cougar",
	"ocelot", "jaguar", "leopard", "panther", "tiger", "cheetah", "hyena",
	"jackal", "coyote", "dingo", "meerkat", "mongoose", "civet", "genet",
	"aardvark", "pangolin", "armadillo", "sloth", "tapir", "capybara",
}

// IdentityFor derives a stable PlayerInfo color/animal pair from a
// player id. The same id always yields the same pair, regardless of
// connection order, so reconnecting players keep their identity.
func IdentityFor(playerID string) (colorIndex int, animal string, color string) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(playerID))
	sum := h.Sum32()

	space := uint32(len(colorNames) * len(animalNames))
	slot := sum % space

	colorIndex = int(slot) % len(colorNames)
	animalIndex := int(slot) / len(colorNames)
	return colorIndex, animalNames[animalIndex], colorNames[colorIndex]
}
