package web

// indexPage is the minimal built-in dashboard: the live preview image
// plus the status line, no build step required.
const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Thermal Preview</title>
<style>
  body { background: #111; color: #ddd; font-family: monospace; text-align: center; }
  img { margin-top: 1em; image-rendering: auto; border: 1px solid #333; }
  #status { margin-top: 0.5em; color: #888; }
</style>
</head>
<body>
<h2>Thermal Preview</h2>
<img id="frame" width="640" height="496" alt="waiting for frames">
<div id="status">connecting…</div>
<script>
  const img = document.getElementById('frame');
  const status = document.getElementById('status');
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws/frames');
  ws.binaryType = 'blob';
  ws.onmessage = (ev) => {
    const url = URL.createObjectURL(ev.data);
    img.onload = () => URL.revokeObjectURL(url);
    img.src = url;
  };
  ws.onclose = () => { status.textContent = 'disconnected'; };
  setInterval(async () => {
    try {
      const r = await fetch('/api/status');
      const s = await r.json();
      status.textContent = s.module + ' ' + s.camera_id + ' | fw ' + s.fw_version +
        ' | ' + s.frames + ' frames' + (s.recording ? ' | recording ' + s.recording : '');
    } catch (e) {}
  }, 1000);
</script>
</body>
</html>
`
