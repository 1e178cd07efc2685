package main

const startupPage = `<!DOCTYPE html>
<html lang="fr">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Cilaos</title>
    <style>
        body { margin: 0; background: #0f2a1d; color: #e8f0ea; font-family: "Segoe UI", Roboto, Helvetica, Arial, sans-serif; height: 100vh; display: flex; flex-direction: column; }
        header { padding: 48px 32px 16px; font-size: 40px; font-weight: 600; }
        header small { display: block; font-size: 18px; font-weight: 400; color: #9fbfaa; margin-top: 8px; }
        #log { flex: 1; margin: 0 32px 32px; padding: 12px; overflow-y: auto; background: #08170f; border-radius: 8px;
               font-family: Consolas, Monaco, "Courier New", monospace; font-size: 13px; white-space: pre-wrap; }
        #log .sys { color: #7cc7ff; font-weight: bold; }
        #log .warn { color: #ffb74d; }
        #log .err { color: #ef5350; }
    </style>
</head>
<body>
    <header>Cilaos, le cirque des 421 virages<small>Démarrage de la borne...</small></header>
    <div id="log"></div>
    <script>
        const log = document.getElementById('log');
        window.addLogLine = function(text) {
            const line = document.createElement('div');
            if (text.startsWith('>')) line.className = 'sys';
            else if (text.includes('WARN')) line.className = 'warn';
            else if (text.includes('ERROR') || text.includes('FAIL')) line.className = 'err';
            line.innerText = text;
            log.appendChild(line);
            log.scrollTop = log.scrollHeight;
        };
    </script>
</body>
</html>
`
