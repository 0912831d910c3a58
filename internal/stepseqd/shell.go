// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stepseqd

// defaultShellHTML is the placeholder document served at GET /s/*.
// The actual step-sequencer UI is a separate client build, out of
// scope for this service; this is just enough markup for
// httpapi.SPAHandler to have a `</head>` to inject crawler metadata
// before, and for a browser hitting the bare URL to get something.
const defaultShellHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>stepseq</title>
</head>
<body>
<div id="root"></div>
</body>
</html>
`
